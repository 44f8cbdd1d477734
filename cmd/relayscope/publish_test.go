package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/relayscope/internal/publish"
)

func TestPublishOptions(t *testing.T) {
	tests := []struct {
		name      string
		clientTag bool
		want      publish.Options
	}{
		{"tag off", false, publish.Options{SecureOrigin: false, ClientName: "relayscope"}},
		{"tag on", true, publish.Options{SecureOrigin: true, ClientName: "relayscope"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publishOptions(tt.clientTag, "relayscope"))
		})
	}
}

func TestClientTagFlag(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"publish", "review"} {
		name := name
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			require.NoError(t, err)

			flag := cmd.Flags().Lookup("client-tag")
			require.NotNil(t, flag)
			assert.Equal(t, "false", flag.DefValue, "records are untagged unless asked")

			require.NoError(t, cmd.Flags().Parse([]string{"--client-tag"}))
			on, err := cmd.Flags().GetBool("client-tag")
			require.NoError(t, err)
			assert.True(t, on)
		})
	}
}
