package snvindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reference = "AAAAAAAAAA"
	require.NoError(t, cfg.Validate())

	missingRef := cfg
	missingRef.Reference = ""
	require.Error(t, missingRef.Validate())

	badN := cfg
	badN.MaxNPercent = 1.5
	require.Error(t, badN.Validate())

	badClustering := cfg
	badClustering.Clustering = []ClusteringConfig{{Name: "a", UncertainChar: "bogus"}}
	require.Error(t, badClustering.Validate())
}

func TestConfigSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Reference = "AAAAAAAAAA"
	cfg.Clustering = []ClusteringConfig{
		{Name: "SNV12", Threshold: 12, UncertainChar: "N", MixturePolicy: "exclude_mixed_from_growth"},
	}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Reference, loaded.Reference)
	require.Equal(t, cfg.SNVCeiling, loaded.SNVCeiling)
	require.Len(t, loaded.Clustering, 1)
	require.Equal(t, "SNV12", loaded.Clustering[0].Name)
}
