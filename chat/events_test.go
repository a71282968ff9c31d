package chat

import "testing"

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		check func(t *testing.T, ev Event)
	}{
		{
			name: "welcome",
			raw:  `{"type":"event","event":"WelcomeEvent","data":{"server":"abc"}}`,
			kind: KindWelcome,
		},
		{
			name: "chat message",
			raw: `{"type":"event","event":"ChatMessage","data":{"user_name":"alice","user_id":7,
				"message":{"message":[{"type":"text","text":"!clip "},{"type":"emoticon","text":":)"}]}}}`,
			kind: KindChatMessage,
			check: func(t *testing.T, ev Event) {
				m := ev.Message
				if m == nil || m.UserName != "alice" || m.UserID != 7 || len(m.Segments) != 2 || m.Segments[1].Type != "emoticon" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "reply ok",
			raw:  `{"type":"reply","error":null,"id":0,"data":{"authenticated":true}}`,
			kind: KindReply,
			check: func(t *testing.T, ev Event) {
				if ev.Reply == nil || ev.Reply.ID != 0 || ev.Reply.Failed() {
					t.Errorf("reply = %+v", ev.Reply)
				}
			},
		},
		{
			name: "reply error",
			raw:  `{"type":"reply","error":"UNOTFOUND","id":3}`,
			kind: KindReply,
			check: func(t *testing.T, ev Event) {
				if !ev.Reply.Failed() || ev.Reply.ID != 3 {
					t.Errorf("reply = %+v", ev.Reply)
				}
			},
		},
		{
			name: "unknown event",
			raw:  `{"type":"event","event":"UserJoin","data":{}}`,
			kind: KindOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if ev.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", ev.Kind, tt.kind)
			}
			if tt.check != nil {
				tt.check(t, ev)
			}
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
	if _, err := DecodeEvent([]byte(`{"type":"event","event":"ChatMessage","data":"oops"}`)); err == nil {
		t.Error("expected error for malformed chat message data")
	}
}
