package protocol

import "testing"

func TestLoginRequestRoundTrip(t *testing.T) {
	in := LoginRequest{CardUID: "04a1b2c3d4e5", IBAN: "NL18ABNA0484869011", PIN: "1234"}

	var out LoginRequest
	if err := out.Decode(in.Encode()); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestTransferRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  TransferRequest
	}{
		{name: "withdrawal", req: TransferRequest{DestIBAN: "", Amount: 500}},
		{name: "transfer", req: TransferRequest{DestIBAN: "NL18ABNA0484869011", Amount: 123456789}},
		{name: "negative amount survives encoding", req: TransferRequest{DestIBAN: "x", Amount: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out TransferRequest
			if err := out.Decode(tt.req.Encode()); err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if out != tt.req {
				t.Fatalf("round trip mismatch: got %+v want %+v", out, tt.req)
			}
		})
	}
}

func TestAccountsReplyRoundTrip(t *testing.T) {
	in := AccountsReply{Accounts: []AccountInfo{
		{IBAN: "NL18ABNA0484869011", Type: 0, Balance: 42069},
		{IBAN: "NL29INGB0007761009", Type: 1, Balance: 0},
	}}

	var out AccountsReply
	if err := out.Decode(in.Encode()); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(out.Accounts) != len(in.Accounts) {
		t.Fatalf("expected %d accounts, got %d", len(in.Accounts), len(out.Accounts))
	}
	for i := range in.Accounts {
		if out.Accounts[i] != in.Accounts[i] {
			t.Fatalf("account %d mismatch: got %+v want %+v", i, out.Accounts[i], in.Accounts[i])
		}
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	login := LoginRequest{CardUID: "04a1b2c3d4e5", IBAN: "NL18ABNA0484869011", PIN: "1234"}
	valid := login.Encode()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "cut mid string", payload: valid[:5]},
		{name: "cut mid length prefix", payload: valid[:len(valid)-int(len(login.PIN))-1]},
		{name: "trailing garbage", payload: append(append([]byte{}, valid...), 0xFF)},
		{name: "declared string longer than payload", payload: []byte{0xFF, 0xFF, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out LoginRequest
			if err := out.Decode(tt.payload); err != ErrInvalidPayload {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestSingleByteRepliesRejectWrongSize(t *testing.T) {
	var rep LoginReply
	if err := rep.Decode([]byte{}); err != ErrInvalidPayload {
		t.Fatalf("expected ErrInvalidPayload for empty, got %v", err)
	}
	if err := rep.Decode([]byte{LoginGranted, 0x00}); err != ErrInvalidPayload {
		t.Fatalf("expected ErrInvalidPayload for oversize, got %v", err)
	}
	if err := rep.Decode([]byte{LoginBlocked}); err != nil {
		t.Fatalf("expected valid decode, got %v", err)
	}
	if rep.Status != LoginBlocked {
		t.Fatalf("expected blocked status, got %d", rep.Status)
	}
}
