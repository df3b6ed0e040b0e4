package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	require.Equal(t, "submission-3f2a-9c.zip", buildPublicID("submission-3f2a-9c.zip"))
	require.Equal(t, "evil-name.zip", buildPublicID("../../evil name.ZIP"))
	require.Equal(t, "archive.zip", buildPublicID("???"))
	require.Equal(t, "bundle.zip", buildPublicID("bundle"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	archive, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/grader/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "grader", archive.folder)
}
