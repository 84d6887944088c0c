package parser

import (
	"testing"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

const fsaBase = "https://www.fsa.go.jp/singi/singi_kinyu/market_wg/"

func TestFSA_ParseListing(t *testing.T) {
	html := `<ul>
<li><a href="/singi/singi_kinyu/market_wg/siryou/20250610.html">第5回</a></li>
<li><a href="./gijishidai/20250701.html">議事次第</a></li>
<li><a href="/singi/singi_kinyu/market_wg/shiryou/20250415.html">第4回</a></li>
<li><a href="/singi/singi_kinyu/market_wg/siryou/20250610.html">資料</a></li>
<li><a href="/singi/singi_kinyu/market_wg/gijiroku/20250301.html">議事録</a></li>
</ul>`

	pages := FSA{}.ParseListing(html, fsaBase)

	want := []models.MeetingPage{
		{ID: 20250701, URL: fsaBase + "gijishidai/20250701.html"},
		{ID: 20250610, URL: "https://www.fsa.go.jp/singi/singi_kinyu/market_wg/siryou/20250610.html"},
		{ID: 20250415, URL: "https://www.fsa.go.jp/singi/singi_kinyu/market_wg/shiryou/20250415.html"},
	}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d: %+v", len(pages), len(want), pages)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("pages[%d] = %+v, want %+v", i, pages[i], want[i])
		}
	}
}

func TestFSA_ParseDetail(t *testing.T) {
	html := `<html><head><title>金融審議会「市場制度ワーキング・グループ」（第5回）議事次第：金融庁</title></head>
<body>
<ul>
<li>日時：令和７年６月１０日（火曜日）10時00分～12時00分</li>
<li>場所：中央合同庁舎第7号館</li>
</ul>
<p><a href="https://www.youtube.com/channel/UCfsa000">金融庁チャンネル</a></p>
<p><a href="https://youtu.be/fsaVid_01">会議の模様（YouTube）</a></p>
<ul>
<li><a class="pdf" href="01.pdf">資料１　事務局説明資料</a></li>
<li><a class="pdf" href="02.pdf">資料２　委員提出資料</a></li>
<li><a class="pdf" href="meibo.pdf">メンバー名簿</a></li>
</ul>
</body></html>`
	pageURL := fsaBase + "siryou/20250610.html"

	rec := FSA{}.ParseDetail(html, pageURL)
	if rec == nil {
		t.Fatal("expected record")
	}

	if rec.Date != "2025年6月10日" {
		t.Errorf("Date = %q, want 2025年6月10日", rec.Date)
	}
	if rec.YouTube != "https://youtu.be/fsaVid_01" {
		t.Errorf("YouTube = %q", rec.YouTube)
	}
	if len(rec.PDFs) != 3 {
		t.Fatalf("got %d PDFs, want 3", len(rec.PDFs))
	}
	if rec.PDFs[0].URL != fsaBase+"siryou/01.pdf" {
		t.Errorf("PDFs[0].URL = %q", rec.PDFs[0].URL)
	}
	if no := rec.PDFs[1].RefNo; no == nil || *no != 2 {
		t.Errorf("PDFs[1].RefNo = %v, want 2", no)
	}
	if !rec.PDFs[2].IsRoster {
		t.Error("PDFs[2] should be a roster")
	}
}

func TestFSA_ParseDetail_URLDateFallback(t *testing.T) {
	rec := FSA{}.ParseDetail(`<title>議事次第</title>`, fsaBase+"gijishidai/20250107.html")
	if rec.Date != "2025年1月7日" {
		t.Errorf("Date = %q, want 2025年1月7日", rec.Date)
	}
}

func TestFSA_ParseDetail_ChannelLinkIsNotAVideo(t *testing.T) {
	html := `<a href="https://www.youtube.com/channel/UCfsa000">金融庁チャンネル</a>
<a href="01.pdf">資料1</a>`
	rec := FSA{}.ParseDetail(html, fsaBase+"siryou/20250610.html")
	if rec.YouTube != "" {
		t.Errorf("YouTube = %q, want empty", rec.YouTube)
	}
	if rec.LikelyValid() {
		t.Error("one PDF and no video should not be likely valid")
	}
}

func TestRelatedCommittees(t *testing.T) {
	indexURL := metiBase + "index.html"
	html := `<ul>
<li><a href="./index.html">トップ</a></li>
<li><a href="../doji_shijo_kento/index.html">同時市場の在り方等に関する検討会</a></li>
<li><a href="../seido_wg/index.html">制度設計<span>ワーキンググループ</span></a></li>
<li><a href="https://www.meti.go.jp/other/index.html">外部検討会</a></li>
<li><a href="/shingikai/enecho/index.html">電力・ガス事業分科会</a></li>
<li><a href="jukyu_wg/index.html">需給調整WG</a></li>
<li><a href="jukyu_wg/index.html">需給調整WG</a></li>
</ul>`

	got := RelatedCommittees(html, metiBase, indexURL)

	want := []RelatedCommittee{
		{Name: "制度設計ワーキンググループ", URL: "https://www.meti.go.jp/shingikai/energy_environment/seido_wg/index.html"},
		{Name: "需給調整WG", URL: metiBase + "jukyu_wg/index.html"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d committees, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
