package tests

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/config"
	"github.com/Nephrolytics-ai/docvoice/pkg/workspace"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExternalDependenciesSuite struct {
	suite.Suite
	settingsFile string
	cfg          *config.Config
}

func (s *ExternalDependenciesSuite) SetupSuite() {
	settingsFromEnv := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	settingsFile := settingsFromEnv
	if settingsFile == "" {
		homeDir, err := os.UserHomeDir()
		require.NoError(s.T(), err)
		settingsFile = filepath.Join(homeDir, ".env")
	}

	s.settingsFile = settingsFile

	_, err := os.Stat(settingsFile)
	switch {
	case err == nil:
		require.NoError(s.T(), godotenv.Overload(settingsFile))
	case errors.Is(err, os.ErrNotExist) && settingsFromEnv == "":
		// Defaulting to $HOME/.env and it doesn't exist; use the environment as is.
	default:
		require.NoError(s.T(), err)
	}

	cfg, err := config.Load(strings.TrimSpace(os.Getenv("SETTINGS_YAML")), settingsFile)
	require.NoError(s.T(), err)
	s.cfg = cfg
}

func (s *ExternalDependenciesSuite) SettingsFile() string {
	return s.settingsFile
}

func (s *ExternalDependenciesSuite) Config() *config.Config {
	return s.cfg
}

// scratchWorkspace returns a manager rooted in a per-test temp dir so the
// test can assert the job directory is gone afterwards.
func (s *ExternalDependenciesSuite) scratchWorkspace() *workspace.Manager {
	return workspace.NewManager(s.T().TempDir())
}

func (s *ExternalDependenciesSuite) requireWorkspaceEmpty(manager *workspace.Manager) {
	entries, err := os.ReadDir(manager.Root())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(s.T(), err)
	require.Empty(s.T(), entries, "job workspace left behind under %s", manager.Root())
}
