package waifuwarintegrationtests

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	exitCode := m.Run()
	if testEnv != nil {
		testEnv.Cleanup()
	}
	os.Exit(exitCode)
}
