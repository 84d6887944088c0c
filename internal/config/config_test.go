package config

import "testing"

func TestSecrets_Credential(t *testing.T) {
	s := Secrets{
		ServiceToken: " tok ",
		GeminiAPIKey: "key",
		TokenSecret:  "hmac",
	}

	tests := []struct {
		name string
		cred string
		want string
	}{
		{"service token trimmed", CredServiceToken, "tok"},
		{"gemini key", CredGeminiAPIKey, "key"},
		{"token secret", CredTokenSecret, "hmac"},
		{"unset credential", CredSMTPPassword, ""},
		{"unknown name", "OTHER", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Credential(tt.cred); got != tt.want {
				t.Errorf("Credential(%q) = %q, want %q", tt.cred, got, tt.want)
			}
		})
	}
}

func TestSecrets_CredentialIgnoresUnprefixedEnvironment(t *testing.T) {
	t.Setenv(CredSMTPPassword, "from-env")
	t.Setenv(CredGeminiAPIKey, "from-env")

	if got := (Secrets{}).Credential(CredSMTPPassword); got != "" {
		t.Errorf("Credential(%q) = %q, want empty", CredSMTPPassword, got)
	}
	if got := (Secrets{GeminiAPIKey: "configured"}).Credential(CredGeminiAPIKey); got != "configured" {
		t.Errorf("Credential(%q) = %q, want configured value", CredGeminiAPIKey, got)
	}
}
