package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// Network
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// DB
	PGDispatchDSN string `envconfig:"PG_DISPATCH_DSN" required:"true"`
	// Bus
	RabbitURL        string `envconfig:"RABBIT_URL" required:"true"`
	DispatchExchange string `envconfig:"DISPATCH_EXCHANGE" default:"dispatch.exchange"`
	// Identity
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Dispatch policy
	DefaultRadiusKm     float64       `envconfig:"DEFAULT_RADIUS_KM" default:"5"`
	PresenceTTL         time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`
	RejectionTTL        time.Duration `envconfig:"REJECTION_TTL" default:"6h"`
	LeaseTTL            time.Duration `envconfig:"LEASE_TTL" default:"5s"`
	LeaseWait           time.Duration `envconfig:"LEASE_WAIT" default:"2s"`
	DefaultSlotCapacity int           `envconfig:"DEFAULT_SLOT_CAPACITY" default:"10"`
	// Only orders in these categories are broadcast immediately; the rest
	// wait for manual assignment.
	BroadcastCategories []string `envconfig:"BROADCAST_CATEGORIES" default:"home_collection"`
}

func Load() (App, error) {
	_ = godotenv.Load()
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
