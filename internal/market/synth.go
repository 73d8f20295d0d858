package market

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/crypto-pulse/pkg/models"
)

// Curated set of well-known instruments with plausible base prices,
// ordered by conventional rank.
var fallbackInstruments = []struct {
	Name      string
	Symbol    string
	BasePrice float64
}{
	{"Bitcoin", "BTC", 43000},
	{"Ethereum", "ETH", 2600},
	{"Tether", "USDT", 1.00},
	{"BNB", "BNB", 310},
	{"Solana", "SOL", 98},
	{"XRP", "XRP", 0.63},
	{"USDC", "USDC", 1.00},
	{"Cardano", "ADA", 0.48},
	{"Dogecoin", "DOGE", 0.08},
	{"Avalanche", "AVAX", 37},
}

// Synthesizer produces plausible-looking substitute market data with no
// network dependency. It never fails and performs no I/O.
type Synthesizer struct {
	currency string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSynthesizer creates a synthesizer quoting in the given currency.
func NewSynthesizer(currency string) *Synthesizer {
	if currency == "" {
		currency = DefaultConvert
	}
	return &Synthesizer{
		currency: currency,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Synthesize returns count assets with randomized values over the curated
// instrument set. Counts beyond the set cycle through it with fresh ids and
// ranks so the result length always matches.
func (s *Synthesizer) Synthesize(count int) []models.Asset {
	if count <= 0 {
		return nil
	}

	now := time.Now().UTC()
	assets := make([]models.Asset, 0, count)

	for i := 0; i < count; i++ {
		inst := fallbackInstruments[i%len(fallbackInstruments)]

		// price = base * (1 +/- up to 5%)
		price := inst.BasePrice * (1 + (s.random()-0.5)*0.1)

		quote := models.Quote{
			Price:             price,
			PercentChange24h:  (s.random() - 0.5) * 10,
			PercentChange7d:   (s.random() - 0.5) * 20,
			MarketCap:         price * (s.random()*500000000 + 100000000),
			Volume24h:         s.random() * 5000000000,
			CirculatingSupply: s.random() * 1000000000,
			TotalSupply:       s.random() * 1000000000,
			LastUpdated:       now,
		}

		if s.random() > 0.5 {
			max := s.random() * 1000000000
			quote.MaxSupply = &max
		}

		assets = append(assets, models.Asset{
			ID:      int64(i + 1),
			Name:    inst.Name,
			Symbol:  inst.Symbol,
			Slug:    strings.ReplaceAll(strings.ToLower(inst.Name), " ", "-"),
			CmcRank: i + 1,
			Quote:   map[string]models.Quote{s.currency: quote},
		})
	}

	return assets
}

// random returns a uniform value in [0, 1). rand.Rand is not safe for
// concurrent use and overlapping refreshes may synthesize concurrently.
func (s *Synthesizer) random() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}
