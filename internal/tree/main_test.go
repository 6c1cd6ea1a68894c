package tree

import (
	"os"
	"testing"

	"github.com/Soamid/evogil-sub000/internal/logging"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}
