package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/effects"
	"github.com/takurot/susanoh/internal/models"
)

var epoch = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

type banAlert struct {
	userID   string
	notified bool
}

type fakeStore struct {
	saved  []models.TransitionLog
	alerts []banAlert
	err    error
}

func (s *fakeStore) SaveTransition(tr models.TransitionLog) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, tr)
	return nil
}

func (s *fakeStore) SaveBanAlert(userID, fromState, summary string, notified bool) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, banAlert{userID: userID, notified: notified})
	return nil
}

type fakeNotifier struct {
	bans []models.TransitionLog
}

func (n *fakeNotifier) NotifyBan(tr models.TransitionLog) error {
	n.bans = append(n.bans, tr)
	return nil
}

func testConfig() Config {
	return Config{
		Classifier:   classify.DefaultConfig(),
		Effects:      effects.DefaultConfig(),
		MaxIncidents: 8,
	}
}

func baseSnapshot(state string) Snapshot {
	return Snapshot{
		Users: []models.UserInfo{{UserID: "user_boss_01", State: state}},
		Graph: models.GraphData{
			Nodes: []models.GraphNode{{ID: "user_boss_01", State: state}},
		},
	}
}

func TestApply_BuildsIncidentsAndGraph(t *testing.T) {
	d := New(testConfig(), nil, nil)
	res := d.Apply(baseSnapshot(models.StateUnderSurveillance), epoch)

	if res.Incidents != 1 {
		t.Errorf("got %d incidents, want 1", res.Incidents)
	}
	items := d.Incidents()
	if len(items) != 1 || items[0].UserID != "user_boss_01" {
		t.Errorf("incident view = %+v", items)
	}
	if g := d.Graph(); len(g.Nodes) != 1 {
		t.Errorf("graph view has %d nodes, want 1", len(g.Nodes))
	}
}

func TestApply_TransitionFeedsEffectsAndAudit(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	d := New(testConfig(), store, notifier)

	d.Apply(baseSnapshot(models.StateNormal), epoch)
	res := d.Apply(baseSnapshot(models.StateBanned), epoch.Add(3*time.Second))

	if len(res.Transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(res.Transitions))
	}
	tr := res.Transitions[0]
	if tr.FromState != models.StateNormal || tr.ToState != models.StateBanned {
		t.Errorf("transition = %+v", tr)
	}
	if len(store.saved) != 1 {
		t.Errorf("store got %d records, want 1", len(store.saved))
	}
	if len(notifier.bans) != 1 {
		t.Errorf("notifier got %d bans, want 1", len(notifier.bans))
	}
	if len(store.alerts) != 1 || store.alerts[0].userID != "user_boss_01" || !store.alerts[0].notified {
		t.Errorf("ban alert not recorded with notify outcome: %+v", store.alerts)
	}

	view := d.Effects(epoch.Add(3 * time.Second))
	if len(view.Nodes) != 1 || !view.Nodes[0].Highlighted || !view.Nodes[0].BannedGlow {
		t.Errorf("effects view = %+v", view.Nodes)
	}
}

func TestApply_NonBanTransitionDoesNotNotify(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	d := New(testConfig(), store, notifier)

	d.Apply(baseSnapshot(models.StateNormal), epoch)
	d.Apply(baseSnapshot(models.StateRestrictedWithdraw), epoch.Add(time.Second))
	if len(notifier.bans) != 0 {
		t.Errorf("restriction must not trigger a ban alert, got %d", len(notifier.bans))
	}
	if len(store.alerts) != 0 {
		t.Errorf("restriction must not record a ban alert, got %+v", store.alerts)
	}
}

func TestApply_BanWithoutNotifierRecordsUnnotifiedAlert(t *testing.T) {
	store := &fakeStore{}
	d := New(testConfig(), store, nil)

	d.Apply(baseSnapshot(models.StateNormal), epoch)
	d.Apply(baseSnapshot(models.StateBanned), epoch.Add(time.Second))
	if len(store.alerts) != 1 || store.alerts[0].notified {
		t.Errorf("ban alert must be recorded as unnotified: %+v", store.alerts)
	}
}

func TestApply_StoreFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	d := New(testConfig(), store, nil)

	d.Apply(baseSnapshot(models.StateNormal), epoch)
	res := d.Apply(baseSnapshot(models.StateBanned), epoch.Add(time.Second))
	if len(res.Transitions) != 1 {
		t.Errorf("persistence failure must not drop the transition: %+v", res.Transitions)
	}
}

func TestApply_RepeatSnapshotIsQuiet(t *testing.T) {
	d := New(testConfig(), nil, nil)
	snap := baseSnapshot(models.StateUnderSurveillance)

	d.Apply(snap, epoch)
	res := d.Apply(snap, epoch.Add(time.Second))
	if res.TopologyChanged || res.StateChanged || len(res.Transitions) != 0 {
		t.Errorf("identical snapshot must be quiet: %+v", res)
	}
}

func TestApply_SuspiciousLinkBoost(t *testing.T) {
	d := New(testConfig(), nil, nil)
	snap := Snapshot{
		Graph: models.GraphData{
			Nodes: []models.GraphNode{
				{ID: "user_a", State: models.StateNormal},
				{ID: "user_b", State: models.StateNormal},
			},
			Links: []models.GraphLink{{Source: "user_a", Target: "user_b", Amount: 800_000, Count: 1}},
		},
	}

	res := d.Apply(snap, epoch)
	if len(res.NewlySuspicious) != 1 {
		t.Fatalf("suspicious link not reported: %+v", res)
	}
	view := d.Effects(epoch.Add(time.Second))
	if len(view.Links) != 1 || !view.Links[0].Boosted {
		t.Errorf("link boost missing from effects view: %+v", view.Links)
	}
}

func TestEffects_ExpireAfterWindows(t *testing.T) {
	d := New(testConfig(), nil, nil)
	d.Apply(baseSnapshot(models.StateNormal), epoch)
	d.Apply(baseSnapshot(models.StateBanned), epoch.Add(time.Second))

	late := epoch.Add(time.Minute)
	d.Tick(late)
	if d.AnyEffectsActive(late) {
		t.Error("all effects must expire")
	}
	if view := d.Effects(late); len(view.Nodes) != 0 || len(view.Links) != 0 {
		t.Errorf("expired effects still visible: %+v", view)
	}
}

func TestFocus_ResolvesThroughGraphPositions(t *testing.T) {
	d := New(testConfig(), nil, nil)
	if ok := d.RequestFocus(effects.FocusRequest{Seq: 1, NodeID: "user_boss_01"}); !ok {
		t.Fatal("first focus request must be accepted")
	}

	// Node not in the graph yet: focus stays pending.
	if view := d.Effects(epoch); view.Focus != nil {
		t.Fatalf("focus resolved before the node landed: %+v", view.Focus)
	}

	d.Apply(baseSnapshot(models.StateNormal), epoch)
	d.SetNodePosition("user_boss_01", 42, -7)

	view := d.Effects(epoch)
	if view.Focus == nil || view.Focus.X != 42 || view.Focus.Y != -7 {
		t.Fatalf("focus target = %+v", view.Focus)
	}
	if again := d.Effects(epoch); again.Focus != nil {
		t.Error("a focus request must be honored at most once")
	}
}

func TestFocus_WaitsForLayoutOfLiveNode(t *testing.T) {
	d := New(testConfig(), nil, nil)
	d.Apply(baseSnapshot(models.StateNormal), epoch)

	if ok := d.RequestFocus(effects.FocusRequest{Seq: 1, NodeID: "user_boss_01"}); !ok {
		t.Fatal("focus request must be accepted")
	}

	// The node is in the graph but the renderer has not placed it yet:
	// centering on the zero-value origin would be wrong, so the request
	// stays pending.
	if view := d.Effects(epoch); view.Focus != nil {
		t.Fatalf("focus resolved before layout: %+v", view.Focus)
	}

	d.SetNodePosition("user_boss_01", 18, 27)
	view := d.Effects(epoch)
	if view.Focus == nil || view.Focus.X != 18 || view.Focus.Y != 27 {
		t.Fatalf("focus target = %+v", view.Focus)
	}
}

func TestRecentTransitions_NewestFirst(t *testing.T) {
	d := New(testConfig(), nil, nil)
	d.Apply(baseSnapshot(models.StateNormal), epoch)
	d.Apply(baseSnapshot(models.StateRestrictedWithdraw), epoch.Add(time.Second))
	d.Apply(baseSnapshot(models.StateBanned), epoch.Add(2*time.Second))

	got := d.RecentTransitions(10)
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	if got[0].ToState != models.StateBanned || got[1].ToState != models.StateRestrictedWithdraw {
		t.Errorf("transitions not newest-first: %+v", got)
	}
	if limited := d.RecentTransitions(1); len(limited) != 1 || limited[0].ToState != models.StateBanned {
		t.Errorf("limit must keep the newest entry: %+v", limited)
	}
}
