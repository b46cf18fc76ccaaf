package session_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"rpgserver/combat/dice"
	"rpgserver/combat/engine"
	"rpgserver/combat/session"
	"rpgserver/combat/session/mocks"
	"rpgserver/models"
)

var testOptions = session.Options{
	EndPolicy: engine.EndRetainRoster,
	Roll:      engine.RollConfig{SuccessThreshold: 7, ExplosionThreshold: 10},
}

func seeded() session.Option {
	return session.WithSourceFactory(func() (dice.Source, error) {
		return rand.New(rand.NewSource(1)), nil
	})
}

func newManager(t *testing.T, store session.CharacterStore, pub session.Publisher, opts ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.NewManager(testOptions, store, pub, zap.NewNop(), append([]session.Option{seeded()}, opts...)...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func goblin(name string) engine.CombatantData {
	return engine.CombatantData{
		Type:        engine.CombatantNPC,
		Name:        name,
		BlessureMax: 10,
		Seuil:       2,
		Armure:      1,
		Attacks:     []engine.AttackProfile{{Name: "stab", Damage: 3, Pool: 2}},
	}
}

func hero() *models.Character {
	ch := &models.Character{
		Name:                 "Aldric",
		BlessureMax:          12,
		Seuil:                2,
		Armure:               1,
		ActionsMax:           2,
		WeaponName:           "sword",
		WeaponDamage:         3,
		WeaponCharacteristic: "force",
		Characteristics:      map[string]int{"force": 3},
	}
	ch.ID = 7
	return ch
}

func TestAddCharacter_UpdateMirrorsFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCharacterStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	ctx := context.Background()

	store.EXPECT().GetCharacter(gomock.Any(), uint(7)).Return(hero(), nil)
	pub.EXPECT().PublishCombat("s1", gomock.Any()).Times(2)
	gomock.InOrder(
		store.EXPECT().UpdateCharacterFields(gomock.Any(), uint(7), map[string]int{engine.FieldFatigue: 3}).Return(nil),
		pub.EXPECT().PublishCharacterUpdate(uint(7), map[string]int{engine.FieldFatigue: 3}),
	)

	s, err := newManager(t, store, pub).GetOrCreate("s1")
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.AddCharacter(ctx, 7, 14, "2d10")
	if err != nil {
		t.Fatalf("AddCharacter() error = %v", err)
	}
	if res.Combatant == nil || res.Combatant.CharacterID != 7 || res.Combatant.Initiative != 14 {
		t.Fatalf("combatant = %+v", res.Combatant)
	}
	if res.Combatant.ActionsMax != 2 {
		t.Errorf("ActionsMax = %d, want 2 from the sheet", res.Combatant.ActionsMax)
	}

	fatigue := 3
	res, err = s.UpdateCombatant(ctx, res.Combatant.ID, engine.CombatantPatch{Fatigue: &fatigue})
	if err != nil {
		t.Fatalf("UpdateCombatant() error = %v", err)
	}
	if res.Warning != "" {
		t.Errorf("Warning = %q, want none", res.Warning)
	}
}

func TestUpdate_MirrorFailureReturnsWarning(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCharacterStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	ctx := context.Background()

	store.EXPECT().GetCharacter(gomock.Any(), uint(7)).Return(hero(), nil)
	store.EXPECT().UpdateCharacterFields(gomock.Any(), uint(7), gomock.Any()).Return(errors.New("connection refused"))
	pub.EXPECT().PublishCombat("s1", gomock.Any()).Times(2)

	s, _ := newManager(t, store, pub).GetOrCreate("s1")
	added, err := s.AddCharacter(ctx, 7, 0, "")
	if err != nil {
		t.Fatal(err)
	}

	blessure := 4
	res, err := s.UpdateCombatant(ctx, added.Combatant.ID, engine.CombatantPatch{Blessure: &blessure})
	if err != nil {
		t.Fatalf("UpdateCombatant() error = %v", err)
	}
	if res.Warning == "" {
		t.Error("Warning is empty after a failed mirror write")
	}
	if got := s.Snapshot().Combatants[0].Blessure; got != 4 {
		t.Errorf("blessure = %d, combat state must keep the update", got)
	}
}

func TestAddCharacter_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCharacterStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)

	store.EXPECT().GetCharacter(gomock.Any(), uint(99)).Return(nil, models.ErrCharacterNotFound)

	s, _ := newManager(t, store, pub).GetOrCreate("s1")
	if _, err := s.AddCharacter(context.Background(), 99, 0, ""); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("AddCharacter() error = %v, want ErrNotFound", err)
	}
}

func TestRejectedCommandPublishesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)

	s, _ := newManager(t, mocks.NewMockCharacterStore(ctrl), pub).GetOrCreate("s1")
	if _, err := s.Start(context.Background()); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("Start() error = %v, want ErrInvalidInput", err)
	}
	if _, err := s.ValidateAttack(context.Background(), 0, nil); !errors.Is(err, engine.ErrOutOfRangeIndex) {
		t.Fatalf("ValidateAttack() error = %v, want ErrOutOfRangeIndex", err)
	}
}

func TestAttackWorkflow_Publication(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCharacterStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	ctx := context.Background()

	// 追加2回と承認1回
	pub.EXPECT().PublishCombat("s1", gomock.Any()).Times(3)
	// 提出2回、却下1回、承認1回
	pub.EXPECT().PublishPendingAttacks("s1", gomock.Any()).Times(4)

	s, _ := newManager(t, store, pub).GetOrCreate("s1")
	a, err := s.AddCombatant(ctx, goblin("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AddCombatant(ctx, goblin("b"))
	if err != nil {
		t.Fatal(err)
	}

	submitted, err := s.SubmitAttack(ctx, a.Combatant.ID, b.Combatant.ID, engine.RollResult{Successes: 5}, engine.Weapon{Name: "axe", Damage: 3})
	if err != nil {
		t.Fatalf("SubmitAttack() error = %v", err)
	}
	if submitted.Attack.SuggestedDamage != 5 {
		t.Errorf("SuggestedDamage = %d, want 5", submitted.Attack.SuggestedDamage)
	}
	if _, err := s.RollAttack(ctx, b.Combatant.ID, a.Combatant.ID, "stab"); err != nil {
		t.Fatalf("RollAttack() error = %v", err)
	}
	if got := len(s.PendingAttacks()); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	if _, err := s.RejectAttack(ctx, 1); err != nil {
		t.Fatalf("RejectAttack() error = %v", err)
	}
	res, err := s.ValidateAttack(ctx, 0, nil)
	if err != nil {
		t.Fatalf("ValidateAttack() error = %v", err)
	}
	if *res.Damage != 5 || res.Combatant.Blessure != 5 {
		t.Errorf("damage=%d blessure=%d, want 5", *res.Damage, res.Combatant.Blessure)
	}
}

func TestValidateAttack_MirrorsLinkedTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCharacterStore(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	ctx := context.Background()

	store.EXPECT().GetCharacter(gomock.Any(), uint(7)).Return(hero(), nil)
	store.EXPECT().UpdateCharacterFields(gomock.Any(), uint(7), map[string]int{engine.FieldBlessure: 5}).Return(nil)
	pub.EXPECT().PublishCharacterUpdate(uint(7), map[string]int{engine.FieldBlessure: 5})
	pub.EXPECT().PublishCombat("s1", gomock.Any()).AnyTimes()
	pub.EXPECT().PublishPendingAttacks("s1", gomock.Any()).AnyTimes()

	s, _ := newManager(t, store, pub).GetOrCreate("s1")
	orc, err := s.AddCombatant(ctx, goblin("orc"))
	if err != nil {
		t.Fatal(err)
	}
	pc, err := s.AddCharacter(ctx, 7, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	// seuil 2, armure 1: 3 + (5-2) - 1
	if _, err := s.SubmitAttack(ctx, orc.Combatant.ID, pc.Combatant.ID, engine.RollResult{Successes: 5}, engine.Weapon{Name: "club", Damage: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateAttack(ctx, 0, nil); err != nil {
		t.Fatalf("ValidateAttack() error = %v", err)
	}
}

func TestEnd_ClearsPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().PublishCombat("s1", gomock.Any()).AnyTimes()
	pub.EXPECT().PublishPendingAttacks("s1", []engine.PendingAttack{}).Times(1)
	pub.EXPECT().PublishPendingAttacks("s1", gomock.Len(1)).Times(1)
	ctx := context.Background()

	s, _ := newManager(t, mocks.NewMockCharacterStore(ctrl), pub).GetOrCreate("s1")
	a, _ := s.AddCombatant(ctx, goblin("a"))
	b, _ := s.AddCombatant(ctx, goblin("b"))
	if _, err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitAttack(ctx, a.Combatant.ID, b.Combatant.ID, engine.RollResult{Successes: 1}, engine.Weapon{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	res, err := s.End(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Combat.Active || len(res.Combat.Combatants) != 2 {
		t.Errorf("snapshot = %+v, want inactive with roster kept", res.Combat)
	}
}

// recordingPublisher は配信されたバージョンを記録する
type recordingPublisher struct {
	mu       sync.Mutex
	versions []uint64
}

func (p *recordingPublisher) PublishCombat(_ string, s engine.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions = append(p.versions, s.Version)
}

func (p *recordingPublisher) PublishPendingAttacks(string, []engine.PendingAttack) {}
func (p *recordingPublisher) PublishCharacterUpdate(uint, map[string]int) {}
func (p *recordingPublisher) CloseSession(string) {}

func TestConcurrentCommands_PublishInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	s, _ := newManager(t, mocks.NewMockCharacterStore(ctrl), pub).GetOrCreate("s1")
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.AddCombatant(ctx, goblin(name)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.NextTurn(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.versions) != 54 {
		t.Fatalf("published %d snapshots, want 54", len(pub.versions))
	}
	for i := 1; i < len(pub.versions); i++ {
		if pub.versions[i] <= pub.versions[i-1] {
			t.Fatalf("version %d published after %d", pub.versions[i], pub.versions[i-1])
		}
	}
	snap := s.Snapshot()
	if snap.CurrentTurnIndex < 0 || snap.CurrentTurnIndex >= len(snap.Combatants) {
		t.Errorf("index %d out of range", snap.CurrentTurnIndex)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := newManager(t, mocks.NewMockCharacterStore(ctrl), pub, session.WithClock(clock))

	first, err := m.GetOrCreate("s1")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := m.GetOrCreate("s1")
	if first != again {
		t.Error("GetOrCreate returned a different session")
	}
	if _, err := m.GetOrCreate(""); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("GetOrCreate(\"\") error = %v", err)
	}

	if _, err := m.SetActive(42, "s2"); err != nil {
		t.Fatal(err)
	}
	if id, ok := m.ActiveSession(42); !ok || id != "s2" {
		t.Errorf("ActiveSession(42) = %q, %v", id, ok)
	}

	pub.EXPECT().CloseSession("s2")
	if !m.Close("s2") {
		t.Fatal("Close(s2) = false")
	}
	if _, ok := m.ActiveSession(42); ok {
		t.Error("active session survived Close")
	}
	if m.Close("s2") {
		t.Error("second Close(s2) = true")
	}

	pub.EXPECT().CloseSession("s1")
	now = now.Add(3 * time.Hour)
	closed := m.SweepIdle(2 * time.Hour)
	if len(closed) != 1 || closed[0] != "s1" {
		t.Errorf("SweepIdle() = %v, want [s1]", closed)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_SweepKeepsRecentSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().PublishCombat(gomock.Any(), gomock.Any()).AnyTimes()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := newManager(t, mocks.NewMockCharacterStore(ctrl), pub, session.WithClock(func() time.Time { return now }))
	s, _ := m.GetOrCreate("s1")
	now = now.Add(90 * time.Minute)
	if _, err := s.AddCombatant(context.Background(), goblin("a")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(60 * time.Minute)

	if closed := m.SweepIdle(2 * time.Hour); len(closed) != 0 {
		t.Errorf("SweepIdle() = %v, want nothing closed", closed)
	}
}

func TestManager_SweepKeepsRunningCombat(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().PublishCombat("s1", gomock.Any()).AnyTimes()
	pub.EXPECT().PublishPendingAttacks("s1", gomock.Any()).AnyTimes()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m := newManager(t, mocks.NewMockCharacterStore(ctrl), pub, session.WithClock(func() time.Time { return now }))
	s, _ := m.GetOrCreate("s1")
	if _, err := s.AddCombatant(ctx, goblin("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// 長い休憩を挟んでも戦闘中なら残す
	now = now.Add(5 * time.Hour)
	if closed := m.SweepIdle(2 * time.Hour); len(closed) != 0 {
		t.Fatalf("SweepIdle() = %v, want nothing closed", closed)
	}
	if _, err := s.NextTurn(ctx); err != nil {
		t.Fatalf("NextTurn() after sweep error = %v", err)
	}

	if _, err := s.End(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(3 * time.Hour)
	pub.EXPECT().CloseSession("s1")
	if closed := m.SweepIdle(2 * time.Hour); len(closed) != 1 || closed[0] != "s1" {
		t.Errorf("SweepIdle() after End = %v, want [s1]", closed)
	}
}

func TestManager_ClosedSessionRejectsCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m := newManager(t, mocks.NewMockCharacterStore(ctrl), pub, session.WithClock(func() time.Time { return now }))
	stale, _ := m.GetOrCreate("s1")
	now = now.Add(3 * time.Hour)
	pub.EXPECT().CloseSession("s1")
	if closed := m.SweepIdle(2 * time.Hour); len(closed) != 1 {
		t.Fatalf("SweepIdle() = %v, want [s1]", closed)
	}

	// 掃除済みのセッションを掴んでいたコマンドは何も配信しない
	_, err := stale.AddCombatant(ctx, goblin("late"))
	if !errors.Is(err, session.ErrSessionClosed) || !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("AddCombatant() on swept session error = %v, want ErrSessionClosed", err)
	}

	fresh, err := m.GetOrCreate("s1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh == stale {
		t.Error("GetOrCreate returned the swept session")
	}
}

func TestManager_Roll(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newManager(t, mocks.NewMockCharacterStore(ctrl), mocks.NewMockPublisher(ctrl))

	res, err := m.Roll(5, 0, 0)
	if err != nil {
		t.Fatalf("Roll() error = %v", err)
	}
	if len(res.Rolls) < 5 {
		t.Errorf("rolls = %v, want at least 5", res.Rolls)
	}
	if _, err := m.Roll(3, 7, 1); !errors.Is(err, dice.ErrInvalidInput) {
		t.Errorf("Roll() with explosion 1 error = %v", err)
	}
}
