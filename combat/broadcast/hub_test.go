package broadcast

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"rpgserver/combat/engine"
	"rpgserver/models"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// drain はバッファ済みのフレームを全て取り出す
func drain(t *testing.T, sub *Subscriber) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case msg, ok := <-sub.Send():
			if !ok {
				return out
			}
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil {
				t.Fatalf("bad frame %s: %v", msg, err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func types(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func gm(id uint) *models.Client {
	return &models.Client{UserID: id, Role: models.RoleGM, Name: "gm"}
}

func player(id, characterID uint, name string) *models.Client {
	return &models.Client{UserID: id, CharacterID: characterID, Name: name, Role: models.RolePlayer}
}

func TestHub_CombatUpdateReachesRoomOnly(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	a := h.Register(player(1, 10, "Aldric"))
	b := h.Register(player(2, 20, "Brune"))
	h.Join(a, "s1")
	h.Join(b, "s2")

	h.PublishCombat("s1", engine.Snapshot{Version: 3, Active: true, Round: 1})

	got := drain(t, a)
	if len(got) != 1 || got[0].Type != models.EventCombatUpdate {
		t.Fatalf("a frames = %v", types(got))
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(got[0].Payload, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Version != 3 || !snap.Active {
		t.Errorf("snapshot = %+v", snap)
	}
	if frames := drain(t, b); len(frames) != 0 {
		t.Errorf("b frames = %v, want none", types(frames))
	}
}

func TestHub_PendingAttacksGMOnly(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	p := h.Register(player(1, 10, "Aldric"))
	g := h.Register(gm(2))
	h.Join(p, "s1")
	h.Join(g, "s1")
	drain(t, g)

	h.PublishPendingAttacks("s1", []engine.PendingAttack{{ID: "x"}})

	if frames := drain(t, p); len(frames) != 0 {
		t.Errorf("player frames = %v, want none", types(frames))
	}
	frames := drain(t, g)
	if len(frames) != 1 || frames[0].Type != models.EventPendingAttacksUpdate {
		t.Errorf("gm frames = %v", types(frames))
	}
}

func TestHub_CharacterUpdateTargetsOwner(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	a := h.Register(player(1, 10, "Aldric"))
	b := h.Register(player(2, 20, "Brune"))

	h.PublishCharacterUpdate(20, map[string]int{engine.FieldBlessure: 4})

	if frames := drain(t, a); len(frames) != 0 {
		t.Errorf("a frames = %v, want none", types(frames))
	}
	frames := drain(t, b)
	if len(frames) != 1 || frames[0].Type != models.EventCharacterUpdate {
		t.Fatalf("b frames = %v", types(frames))
	}
}

func TestHub_Presence(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	g := h.Register(gm(1))
	h.Join(g, "s1")
	drain(t, g)

	p := h.Register(player(2, 10, "Aldric"))
	h.Join(p, "s1")

	online := h.Online("s1")
	if len(online) != 1 || online[0].CharacterID != 10 || online[0].Name != "Aldric" {
		t.Fatalf("Online(s1) = %+v", online)
	}
	if online[0].ConnectedAt.IsZero() {
		t.Error("ConnectedAt not set")
	}

	frames := drain(t, g)
	if len(frames) == 0 || frames[len(frames)-1].Type != models.EventOnlineCharacters {
		t.Fatalf("gm frames = %v", types(frames))
	}
	var last []Presence
	if err := json.Unmarshal(frames[len(frames)-1].Payload, &last); err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].SessionID != "s1" {
		t.Errorf("presence payload = %+v", last)
	}

	h.Unregister(p)
	if online := h.Online(""); len(online) != 0 {
		t.Errorf("Online after disconnect = %+v", online)
	}
	if _, ok := <-p.Send(); ok {
		t.Error("send channel still open after Unregister")
	}
}

func TestHub_PresenceSurvivesSecondConnection(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	first := h.Register(player(1, 10, "Aldric"))
	second := h.Register(player(1, 10, "Aldric"))

	h.Unregister(first)
	if online := h.Online(""); len(online) != 1 {
		t.Fatalf("Online = %+v, want Aldric still present", online)
	}
	h.Unregister(second)
	if online := h.Online(""); len(online) != 0 {
		t.Fatalf("Online = %+v, want empty", online)
	}
}

func TestHub_FullBufferDropsFrames(t *testing.T) {
	h := NewHub(2, zap.NewNop())
	p := h.Register(player(1, 10, "Aldric"))
	h.Join(p, "s1")

	for v := uint64(0); v < 5; v++ {
		h.PublishCombat("s1", engine.Snapshot{Version: v})
	}

	frames := drain(t, p)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2 buffered", len(frames))
	}
}

func kicked(sub *Subscriber) bool {
	select {
	case <-sub.Kicked():
		return true
	default:
		return false
	}
}

func TestHub_FullBufferKicksGMOnPendingAttacks(t *testing.T) {
	h := NewHub(2, zap.NewNop())
	g := h.Register(gm(1))
	p := h.Register(player(2, 10, "Aldric"))
	h.Join(g, "s1")
	h.Join(p, "s1")
	drain(t, g)

	// スナップショットの取りこぼしでは切断しない
	for v := uint64(0); v < 5; v++ {
		h.PublishCombat("s1", engine.Snapshot{Version: v})
	}
	if kicked(g) || kicked(p) {
		t.Fatal("subscriber kicked after dropped snapshots")
	}

	h.PublishPendingAttacks("s1", []engine.PendingAttack{{ID: "x"}})
	if !kicked(g) {
		t.Error("GM with a full buffer was not kicked on pending attacks")
	}
	if kicked(p) {
		t.Error("player kicked by a GM-only frame")
	}

	// 二度目の取りこぼしでも panic しない
	h.PublishPendingAttacks("s1", nil)
	h.Unregister(g)
}

func TestHub_CloseSessionDetachesClients(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	p := h.Register(player(1, 10, "Aldric"))
	h.Join(p, "s1")

	h.CloseSession("s1")
	if got := h.SessionOf(p); got != "" {
		t.Errorf("SessionOf = %q, want empty", got)
	}
	h.PublishCombat("s1", engine.Snapshot{})
	if frames := drain(t, p); len(frames) != 0 {
		t.Errorf("frames after close = %v", types(frames))
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	p := h.Register(player(1, 0, "spectator"))
	h.Unregister(p)
	h.Unregister(p)
	h.SendTo(p, models.EventError, "late")
}

func TestHub_StaleConnectionKeepsRoomPresence(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	old := h.Register(player(1, 10, "Aldric"))
	h.Join(old, "s1")
	fresh := h.Register(player(1, 10, "Aldric"))
	h.Join(fresh, "s1")

	h.Unregister(old)
	online := h.Online("s1")
	if len(online) != 1 || online[0].SessionID != "s1" {
		t.Fatalf("Online(s1) = %+v, want Aldric in s1", online)
	}
}
