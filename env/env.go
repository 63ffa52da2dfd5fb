package env

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var (
	mu          sync.Mutex
	validations = map[string]string{}
	validate    = validator.New()
)

// RegisterValidation registers validation tags for an environment variable.
// Packages call this from init so that a missing or malformed variable is
// caught once at startup rather than at first use.
func RegisterValidation(key string, tags string) {
	mu.Lock()
	defer mu.Unlock()
	if tags == "" {
		panic(fmt.Sprintf("no tags provided for key %s", key))
	}
	validations[key] = tags
	viper.BindEnv(key)
}

// VarsAreValid checks every registered variable against its tags.
func VarsAreValid() error {
	mu.Lock()
	defer mu.Unlock()
	for key, tags := range validations {
		if err := validate.Var(viper.Get(key), tags); err != nil {
			return fmt.Errorf("invalid environment variable %s: %s", key, err)
		}
	}
	return nil
}

func GetString(key string) string {
	return viper.GetString(key)
}

func GetInt(key string) int {
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	return viper.GetInt64(key)
}

func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}
