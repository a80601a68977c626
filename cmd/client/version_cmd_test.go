package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/syftbox-sh/syftbox/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand_PrintsDetailedString(t *testing.T) {
	cmd := &cobra.Command{Use: "syftbox"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, version.Detailed(), strings.TrimSpace(out.String()))
}

func TestVersionCommand_JSONFlagEmitsStructuredInfo(t *testing.T) {
	cmd := &cobra.Command{Use: "syftbox"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--json"})

	require.NoError(t, cmd.Execute())

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	require.Equal(t, version.Version, info.Version)
	require.Equal(t, version.AppName, info.App)
}
