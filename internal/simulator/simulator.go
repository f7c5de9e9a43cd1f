// Package simulator generates synthetic game event traffic for demos and
// load testing: mostly benign trades, with occasional smurfing bursts,
// RMT slang chatter, and layering chains mixed in.
package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/takurot/susanoh/internal/models"
)

var (
	normalPlayers = func() []string {
		players := make([]string, 20)
		for i := range players {
			players[i] = fmt.Sprintf("user_player_%02d", i+1)
		}
		return players
	}()

	muleAccounts = func() []string {
		mules := make([]string, 8)
		for i := range mules {
			mules[i] = fmt.Sprintf("user_mule_%02d", i+1)
		}
		return mules
	}()

	layerChain = []string{"user_layer_A", "user_layer_B", "user_layer_C", "user_layer_D"}

	normalItems = []string{"sword", "shield", "potion", "gem", "ore"}

	normalChats = []string{
		"よろしく！",
		"ありがとう！",
		"GG!",
		"いい取引だったね",
		"また交換しよう",
		"",
	}

	smurfChats = []string{
		"Dで確認しました",
		"振り込み完了",
		"入金確認お願いします",
		"",
	}
)

// BossAccount is the aggregation target of every smurfing burst.
const BossAccount = "user_boss_01"

// Generator produces synthetic event batches. It is deterministic given a
// seeded rand source, which the tests rely on.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a generator seeded from seed.
func New(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

func (g *Generator) eventID() string {
	return "evt_" + uuid.New().String()[:8]
}

func (g *Generator) timestamp() string {
	return g.now().UTC().Format(time.RFC3339)
}

// NormalEvent is an ordinary trade between two random established players.
func (g *Generator) NormalEvent() models.GameEvent {
	actor := normalPlayers[g.rng.Intn(len(normalPlayers))]
	target := actor
	for target == actor {
		target = normalPlayers[g.rng.Intn(len(normalPlayers))]
	}
	return models.GameEvent{
		EventID:   g.eventID(),
		Timestamp: g.timestamp(),
		EventType: "TRADE",
		ActorID:   actor,
		TargetID:  target,
		ActionDetails: models.ActionDetails{
			CurrencyAmount: int64(g.rng.Intn(49_901) + 100),
			ItemID: fmt.Sprintf("itm_%s_%02d",
				normalItems[g.rng.Intn(len(normalItems))], g.rng.Intn(20)+1),
			MarketAvgPrice: float64(g.rng.Intn(4501) + 500),
		},
		ContextMetadata: models.ContextMetadata{
			ActorLevel:     g.rng.Intn(71) + 10,
			AccountAgeDays: g.rng.Intn(336) + 30,
			RecentChatLog:  normalChats[g.rng.Intn(len(normalChats))],
		},
	}
}

// SmurfingEvents is a burst of worthless-item trades funneling currency
// from fresh mule accounts into the boss account.
func (g *Generator) SmurfingEvents() []models.GameEvent {
	events := make([]models.GameEvent, 0, len(muleAccounts))
	for _, mule := range muleAccounts {
		events = append(events, models.GameEvent{
			EventID:   g.eventID(),
			Timestamp: g.timestamp(),
			EventType: "TRADE",
			ActorID:   mule,
			TargetID:  BossAccount,
			ActionDetails: models.ActionDetails{
				CurrencyAmount: int64(g.rng.Intn(150_001) + 150_000),
				ItemID:         "itm_wood_stick_01",
				MarketAvgPrice: 10,
			},
			ContextMetadata: models.ContextMetadata{
				ActorLevel:     g.rng.Intn(5) + 1,
				AccountAgeDays: g.rng.Intn(3) + 1,
				RecentChatLog:  smurfChats[g.rng.Intn(len(smurfChats))],
			},
		})
	}
	return events
}

// RMTSlangEvent is a single trade whose chat log reads like a real-money
// sale.
func (g *Generator) RMTSlangEvent() models.GameEvent {
	return models.GameEvent{
		EventID:   g.eventID(),
		Timestamp: g.timestamp(),
		EventType: "TRADE",
		ActorID:   "user_rmt_seller_01",
		TargetID:  "user_rmt_buyer_01",
		ActionDetails: models.ActionDetails{
			CurrencyAmount: 500_000,
			ItemID:         "itm_wood_stick_01",
			MarketAvgPrice: 10,
		},
		ContextMetadata: models.ContextMetadata{
			ActorLevel:     2,
			AccountAgeDays: 1,
			RecentChatLog:  "3kで振込お願いします。PayPal可。口座番号送ります。",
		},
	}
}

// LayeringEvents is a chain of transfers hopping a shrinking amount
// through intermediate accounts.
func (g *Generator) LayeringEvents() []models.GameEvent {
	events := make([]models.GameEvent, 0, len(layerChain)-1)
	amount := int64(g.rng.Intn(300_001) + 200_000)
	for i := 0; i < len(layerChain)-1; i++ {
		events = append(events, models.GameEvent{
			EventID:   g.eventID(),
			Timestamp: g.timestamp(),
			EventType: "TRADE",
			ActorID:   layerChain[i],
			TargetID:  layerChain[i+1],
			ActionDetails: models.ActionDetails{
				CurrencyAmount: amount,
				ItemID:         fmt.Sprintf("itm_rare_gem_%02d", i+1),
				MarketAvgPrice: float64(g.rng.Intn(4001) + 1000),
			},
			ContextMetadata: models.ContextMetadata{
				ActorLevel:     g.rng.Intn(11) + 5,
				AccountAgeDays: g.rng.Intn(16) + 5,
			},
		})
		amount = amount * 95 / 100
	}
	return events
}

// NextBatch picks a scenario with the demo traffic mix: 90% normal, 5%
// smurfing burst, 3% RMT slang, 2% layering chain.
func (g *Generator) NextBatch() []models.GameEvent {
	r := g.rng.Float64()
	switch {
	case r < 0.90:
		return []models.GameEvent{g.NormalEvent()}
	case r < 0.95:
		return g.SmurfingEvents()
	case r < 0.98:
		return []models.GameEvent{g.RMTSlangEvent()}
	default:
		return g.LayeringEvents()
	}
}
