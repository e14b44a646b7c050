package deepface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeParsesSidecarResponse(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{
			"emotion":{"happy":82.5,"neutral":10.1,"sad":7.4},
			"face_confidence":0.93,
			"region":{"x":12,"y":30,"w":96,"h":96}
		}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "opencv")
	analysis, err := client.Analyze(context.Background(), entity.Frame{Data: []byte{0xff, 0xd8}, Width: 4, Height: 4})
	require.NoError(t, err)

	assert.Equal(t, 82.5, analysis.Scores["happy"])
	assert.Equal(t, 0.93, analysis.FaceConfidence)
	assert.Equal(t, entity.Region{X: 12, Y: 30, W: 96, H: 96}, analysis.Region)

	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}), got.Image)
	assert.Equal(t, []string{"emotion"}, got.Actions)
	assert.False(t, got.EnforceDetection)
	assert.Equal(t, "opencv", got.DetectorBackend)
}

func TestAnalyzeEmptyResultsIsNoFaceNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "opencv")
	analysis, err := client.Analyze(context.Background(), entity.Frame{Data: []byte{1}, Width: 4, Height: 4})
	require.NoError(t, err)
	assert.Empty(t, analysis.Scores)
	assert.Zero(t, analysis.FaceConfidence)
	assert.True(t, analysis.Region.IsZero())
}

func TestAnalyzeNon200SurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "opencv")
	_, err := client.Analyze(context.Background(), entity.Frame{Data: []byte{1}, Width: 4, Height: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestFactoryWarmUpFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewFactory(srv.URL, "opencv").New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm-up")
}

func TestFactoryBuildsWorkingClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/analyze" {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	analyzer, err := NewFactory(srv.URL, "retinaface").New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "retinaface", analyzer.Backend())

	_, err = analyzer.Analyze(context.Background(), entity.Frame{Data: []byte{1}, Width: 4, Height: 4})
	require.NoError(t, err)
}
