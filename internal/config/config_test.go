package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("classroom")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "classroom", cfg.Service.ID)
	assert.Equal(t, []string{"general", "conversation"}, cfg.Content.Categories["general"])
	assert.Equal(t, "Share something interesting you learned recently.", cfg.Content.Default)
	assert.False(t, cfg.Rounds.SupervisorParticipates)
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := config.LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`service:
  id: lab
tokens:
  words: [apple, pear]
content:
  categories:
    fun: [games]
  items:
    - text: "Favourite board game?"
      tags: [games]
rounds:
  supervisor_participates: true
webhooks:
  - url: http://127.0.0.1:9/hook
    events: [round.completed]
`)
	require.NoError(t, os.WriteFile(config.Path(dir), data, 0o644))
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "pear"}, cfg.Tokens.Words)
	assert.True(t, cfg.Rounds.SupervisorParticipates)
	require.Len(t, cfg.Content.Items, 1)
	require.Len(t, cfg.Webhooks, 1)
	assert.True(t, cfg.Webhooks[0].WebhookEnabled())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing id":    "service:\n  id: \"\"\n",
		"empty word":    "service:\n  id: x\ntokens:\n  words: [\"\"]\n",
		"empty tags":    "service:\n  id: x\ncontent:\n  categories:\n    general: []\n",
		"webhook url":   "service:\n  id: x\nwebhooks:\n  - events: [round.completed]\n",
		"item no text":  "service:\n  id: x\ncontent:\n  items:\n    - tags: [a]\n",
		"invalid yaml:": "service: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadServeEnv(t *testing.T) {
	t.Setenv("PAIRWISE_JWT_SECRET", "")
	_, err := config.LoadServeEnv()
	assert.Error(t, err)

	t.Setenv("PAIRWISE_JWT_SECRET", "s3cret")
	t.Setenv("PAIRWISE_LOG_LEVEL", "debug")
	env, err := config.LoadServeEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", env.JWTSecret)
	assert.Equal(t, "debug", env.LogLevel)
	assert.Equal(t, "json", env.LogFormat)
}
