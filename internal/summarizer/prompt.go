package summarizer

import (
	"fmt"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

const (
	undatedLabel = "日付未記載"
	notFetched   = "（未取得）"
	notDetected  = "(未検出)"
	ruleLineFull = "────────────────────────────"
)

func partialPrompt(index, total int, chunk string) string {
	return strings.Join([]string{
		"あなたは「日本の行政会議の要約編集者」。以下の文字起こしチャンクを日本語で箇条書き要約する。",
		"誇張や推測は禁止。重要発言・数値・制度名・論点・賛否・事務局対応に集中する。",
		"文末は常体（〜である）。冗長な言い換えは削り、重複は避ける。",
		fmt.Sprintf("# チャンク %d/%d\n%s", index, total, chunk),
	}, "\n")
}

type finalPromptInput struct {
	Meeting      *models.MeetingRecord
	StrictAgenda string
	AgendaBlock  string
	AgendaText   string
	RosterText   string
	Digest       string
	SourceLimit  int
}

func finalPrompt(in finalPromptInput) string {
	date := in.Meeting.Date
	titleDate := date
	if titleDate == "" {
		titleDate = undatedLabel
	}
	overviewDate := date
	if overviewDate == "" {
		overviewDate = "（記載なし）"
	}
	strict := in.StrictAgenda
	if strict == "" {
		strict = notDetected
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
# 役割
あなたは「日本の行政会議（経産省・金融庁の審議会、検討会等）の要約専門家」。

# 正規議題（議事次第PDFから抽出）
%s

# 議題と配付資料の区別
- 議事次第の「議事」セクション（開会、ヒアリング、閉会など）のみを「■議題」に記載する
- 「配付資料」や資料リスト（資料1、資料2など）は「■議題」に含めない

# 議題別要約のルール
- 正規議題に記載された全ての議題について、個別に要約を記載する
- 議題が関連していても統合しない
- 内容が薄い議題でも「・事務局から○○について説明」など最低1項目は記載する
- 議題タイトルだけで内容が空の行は生成しない

# 量的制約（厳守）
全体で2500文字を1文字でも超えたら不合格。

【セクション別文字数上限】
- ■開催概要：150文字以内
- ■サマリ：150文字以内（必ず3行）
- ■議題別要約：全議題合計で1800文字以内
  * 各議題の内容箇条書き：最大3項目（各30文字以内）
  * 各議題の委員コメント：最大2名（各40文字以内）
  * 各議題の事務局対応：1項目のみ（40文字以内）
- ■座長まとめ：80文字以内

※出力には（）や【】などの指示記号を残さず、実際の内容のみを記載する

【簡潔化】
削除すべき表現：「〜について」「〜に関して」「〜が説明された」「〜とされた」「重要である」「必要である」

悪い：「2030年までの電源移行期における安定供給確保が喫緊の課題とされた。」
良い：「2030年まで安定供給確保が課題。」

悪い：「秋本委員：民間事業への国介入は慎重に。発電設備閉鎖には地元調整が必要。」
良い：「秋本委員：国介入は慎重に、地元調整必要。」

# 出力フォーマット
- 章見出しは必ず「■」で開始する。罫線と順序は厳密に守る。文末は常体。敬称は省略。
- 委員名・所属は名簿に準拠する（文字起こし側の誤記を使わない）。
- 不明な項目は「（未記載）」と明示する。捏造は禁止。
- マークダウン記法（**太字**など）は使用禁止。すべて平文。

# 出力テンプレート
■%s（%s）
%s
■開催概要
・日時：%s
・形式：（オンライン／現地／ハイブリッド）
・出席者：座長名、委員名（3-5名を代表的に）、オブザーバー、事務局
%s
■議題
%s
%s
■サマリ
・（要点1）
・（要点2）
・（要点3）
%s
■議題別要約

1.（議題タイトル）
・（要点1）
・（要点2）
・（要点3）

・委員A：（意見内容）
・委員B：（意見内容）
・事務局対応：（対応内容）

2.（議題タイトル）
...（同様の形式）

%s
■座長まとめ（座長名）
・（総括と方向性）
%s

# 書式ルール
- 議題内容の箇条書きは「・」で開始する
- 委員コメントの前には空行を1行入れる
- 委員コメントは「・委員名：内容」の形式
- 議題番号は「1.」「2.」（半角数字と半角ピリオド）
- 罫線の長さは統一する

`, strict,
		in.Meeting.Title, titleDate, ruleLineFull,
		overviewDate, ruleLineFull,
		in.AgendaBlock, ruleLineFull,
		ruleLineFull, ruleLineFull, ruleLineFull)

	fmt.Fprintf(&b, "# 入力資料\n- 議事次第：\n%s\n- 委員名簿：\n%s\n- チャンク要約：\n%s\n",
		orDefault(firstN(in.AgendaText, in.SourceLimit), notFetched),
		orDefault(firstN(in.RosterText, in.SourceLimit), notFetched),
		in.Digest)

	return b.String()
}

func firstN(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
