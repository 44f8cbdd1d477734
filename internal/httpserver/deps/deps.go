package deps

import (
	"time"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/mw"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
	"github.com/MrSnakeDoc/relayscope/internal/prober"
	"github.com/MrSnakeDoc/relayscope/internal/publish"
	"github.com/MrSnakeDoc/relayscope/internal/social"
	"github.com/MrSnakeDoc/relayscope/internal/store"
)

type Deps struct {
	Logger     logger.Logger
	StartTime  time.Time
	Version    string
	Commit     string
	BuildDate  string
	GoVersion  string
	TimeNow    func() time.Time // for testing, defaults to time.Now
	ClientName string           // value of the client tag on secure origins

	AllowedHosts   []string           // Host headers allowed on write endpoints
	AllowedCIDRS   []string           // IPs allowed on ops endpoints
	AllowedOrigins []string           // CORS origins
	TrustProxy     bool               // true if running behind a trusted reverse proxy
	RateLimit      mw.RateLimitConfig // applied to write endpoints

	Index       *index.StatusIndex
	Prober      *prober.Prober
	Aggregator  *social.Aggregator
	Publisher   *publish.Publisher
	Suggestions store.SuggestionCache
	StatusStore store.StatusStore // nil when Redis is disabled
	Metrics     *metrics.Metrics

	Lists         func() domain.RelayLists // current configured relay lists
	ReloadTrigger chan struct{}            // manual reprobe trigger
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

// CurrentLists returns the configured lists, or empty lists before the first load.
func (d Deps) CurrentLists() domain.RelayLists {
	if d.Lists == nil {
		return domain.RelayLists{}
	}
	return d.Lists()
}
