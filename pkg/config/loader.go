package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.RWMutex
	loaded = make(map[string]any)

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into the provided configuration struct.
//
// The default .env file is loaded once per process before the first parse;
// a missing .env file is not an error. Each configuration type is parsed at
// most once; subsequent calls for the same type return the cached copy.
//
// Example:
//
//	type MongoConfig struct {
//		URL string `env:"MONGODB_URL,required"`
//	}
//
//	var cfg MongoConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Re-check under the write lock: another goroutine may have won the race.
	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	// Store a copy so callers cannot mutate the cached value.
	loaded[key] = *v
	return nil
}

// MustLoad works like Load but panics on failure. Use it for configuration
// the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
}

// Reset clears the configuration cache. Intended for tests that mutate the
// process environment between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = make(map[string]any)
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
