package bdd

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/joho/godotenv"
)

func TestMain(m *testing.M) {
	// Load .env.test if present so local overrides apply; the suite itself
	// needs no external services.
	if _, err := os.Stat(".env.test"); err == nil {
		_ = godotenv.Overload(".env.test")
	}
	// Never reach real credentials or brokers from tests
	_ = os.Unsetenv("UCP_CLIENT_ID")
	_ = os.Unsetenv("UCP_CLIENT_SECRET")
	_ = os.Unsetenv("KAFKA_BROKERS")
	os.Exit(m.Run())
}

func TestBDDFeatures(t *testing.T) {
	opts := godog.Options{
		Format: "pretty",
		Paths:  []string{"features"},
		Strict: true,
	}

	suite := godog.TestSuite{
		Name: "group-checkout",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			world := NewCheckoutWorld(t)
			world.Register(sc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}
