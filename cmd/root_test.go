package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"osm", "dissolve", "bounds", "show", "list", "migrate", "serve", "config", "tracts"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "boundary-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestOSMCommand_Flags(t *testing.T) {
	flag := osmCmd.Flags().Lookup("admin-level")
	require.NotNil(t, flag)
	assert.Equal(t, "8", flag.DefValue)

	flag = osmCmd.Flags().Lookup("country")
	require.NotNil(t, flag)
	assert.Equal(t, "US", flag.DefValue)

	for _, name := range []string{"slug", "center", "diagnostic"} {
		assert.NotNil(t, osmCmd.Flags().Lookup(name), "osm should have --%s flag", name)
	}
}

func TestDissolveCommand_Flags(t *testing.T) {
	for _, name := range []string{"name", "slug", "geoid-prefix", "state", "center", "workers",
		"geojson", "shapefile", "tiger-state", "tigerweb", "tracts", "county"} {
		assert.NotNil(t, dissolveCmd.Flags().Lookup(name), "dissolve should have --%s flag", name)
	}
	assert.Equal(t, "0", dissolveCmd.Flags().Lookup("workers").DefValue)
}

func TestTractsCommand_Flags(t *testing.T) {
	assert.Equal(t, "osm", tractsCmd.Flags().Lookup("source").DefValue)
	assert.Equal(t, "8", tractsCmd.Flags().Lookup("admin-level").DefValue)
	for _, name := range []string{"bbox", "out"} {
		assert.NotNil(t, tractsCmd.Flags().Lookup(name), "tracts should have --%s flag", name)
	}
}

func TestBoundsCommand_Flags(t *testing.T) {
	for _, name := range []string{"centroid", "write"} {
		flag := boundsCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "bounds should have --%s flag", name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
