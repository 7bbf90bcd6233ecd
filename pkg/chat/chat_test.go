package chat

import (
	"testing"
)

func TestTurnRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TurnRequest
		wantErr bool
	}{
		{name: "existing session", req: TurnRequest{SessionKey: "abc", Action: "look"}},
		{name: "new session", req: TurnRequest{ScenarioID: "manor", Action: "start"}},
		{name: "blank action", req: TurnRequest{SessionKey: "abc", Action: "   "}, wantErr: true},
		{name: "no session or scenario", req: TurnRequest{Action: "look"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTurnRequest_ValidateTrimsAction(t *testing.T) {
	req := TurnRequest{SessionKey: "abc", Action: "  open door \n"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Action != "open door" {
		t.Errorf("Action = %q, want %q", req.Action, "open door")
	}
}

func TestIsStartCommand(t *testing.T) {
	tests := map[string]bool{
		"start":      true,
		" START ":    true,
		"begin":      true,
		"시작":         true,
		"게임시작":       true,
		"start over": false,
		"look":       false,
		"":           false,
	}
	for in, want := range tests {
		if got := IsStartCommand(in); got != want {
			t.Errorf("IsStartCommand(%q) = %v, want %v", in, got, want)
		}
	}
}
