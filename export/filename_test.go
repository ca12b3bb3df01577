package export

import "testing"

func TestOutputName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "contract.pdf", "contract-signed.pdf"},
		{"uppercase extension", "Contract.PDF", "Contract-signed.pdf"},
		{"no extension", "contract", "contract-signed.pdf"},
		{"spaces become dashes", "my contract final.pdf", "my-contract-final-signed.pdf"},
		{"path stripped", "/tmp/uploads/contract.pdf", "contract-signed.pdf"},
		{"windows path stripped", `C:\Users\me\contract.pdf`, "contract-signed.pdf"},
		{"traversal stripped", "../../etc/contract.pdf", "contract-signed.pdf"},
		{"unsafe characters", "rapport:final*?.pdf", "rapport-final-signed.pdf"},
		{"dash runs collapsed", "a -- b.pdf", "a-b-signed.pdf"},
		{"empty falls back", "", "document-signed.pdf"},
		{"only junk falls back", "???.pdf", "document-signed.pdf"},
		{"dot file falls back", ".pdf", "document-signed.pdf"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutputName(tc.input); got != tc.expected {
				t.Errorf("OutputName(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
