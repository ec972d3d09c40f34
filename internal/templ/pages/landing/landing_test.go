package landing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	tests := []struct {
		name  string
		data  PageData
		title string
	}{
		{"success", SuccessPageData("みなみ"), "お支払いが完了しました"},
		{"cancel", CancelPageData("みなみ"), "お支払いはキャンセルされました"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Page(tt.data).Render(context.Background(), &buf))

			html := buf.String()
			assert.Contains(t, html, "<title>"+tt.title+"</title>")
			assert.Contains(t, html, "<h1>"+tt.title+"</h1>")
			assert.Contains(t, html, "LINEに戻ってみなみとお話ししてね。")
		})
	}
}

func TestPage_EscapesPersona(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(SuccessPageData("<script>x</script>")).Render(context.Background(), &buf))

	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestPage_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Page(CancelPageData("みなみ")).Render(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
