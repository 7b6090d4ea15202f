package media

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFFProbeParsesRotatedPhoneVideo(t *testing.T) {
	prober := NewFFProbe("ffprobe", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" || len(args) < 2 || args[len(args)-2] != "-i" || args[len(args)-1] != "/tmp/rec.mov" {
			t.Fatalf("unexpected invocation %s %v", binary, args)
		}
		return []byte(`{
			"streams": [{"width": 1920, "height": 1080, "side_data_list": [{"rotation": -90}]}],
			"format": {"duration": "12.480000"}
		}`), nil
	}

	res, err := prober.Probe(context.Background(), "/tmp/rec.mov")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if res.Dimensions.Width != 1080 || res.Dimensions.Height != 1920 || res.Dimensions.IsLandscape {
		t.Fatalf("expected rotated portrait frame, got %+v", res.Dimensions)
	}
	if res.Duration != 12.48 {
		t.Fatalf("unexpected duration %v", res.Duration)
	}
}

func TestFFProbeErrors(t *testing.T) {
	prober := NewFFProbe("", time.Second)
	prober.Run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"streams": []}`), nil
	}
	if _, err := prober.Probe(context.Background(), "x"); err == nil {
		t.Fatal("expected error when no video stream")
	}

	prober.Run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := prober.Probe(context.Background(), "x"); err == nil {
		t.Fatal("expected command failure to propagate")
	}

	var nilProber *FFProbe
	if _, err := nilProber.Probe(context.Background(), "x"); !errors.Is(err, ErrProberUnavailable) {
		t.Fatalf("expected ErrProberUnavailable got %v", err)
	}
}

type countingObserver struct{ hits, misses int }

func (c *countingObserver) ObserveProbeCache(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func TestCachingProberUsesCache(t *testing.T) {
	calls := 0
	base := ProberFunc(func(ctx context.Context, input string) (ProbeResult, error) {
		calls++
		d, _ := NewDimensions(720, 1280)
		return ProbeResult{Dimensions: d}, nil
	})

	cache := NewMemoryProbeCache(time.Hour)
	now := time.Now()
	cache.now = func() time.Time { return now }
	observer := &countingObserver{}
	prober := NewCachingProber(base, cache, observer)

	for i := 0; i < 3; i++ {
		if _, err := prober.Probe(context.Background(), "https://cdn.example.com/a.mp4"); err != nil {
			t.Fatalf("probe: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one underlying probe, got %d", calls)
	}
	if observer.hits != 2 || observer.misses != 1 {
		t.Fatalf("unexpected cache observations %+v", observer)
	}

	now = now.Add(2 * time.Hour)
	if _, err := prober.Probe(context.Background(), "https://cdn.example.com/a.mp4"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected expired entry to be re-probed, got %d calls", calls)
	}
}

func TestFFProbePassesInputAsValue(t *testing.T) {
	prober := NewFFProbe("ffprobe", time.Second)
	var got []string
	prober.Run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		got = args
		return []byte(`{"streams":[{"width":640,"height":480}],"format":{"duration":"1"}}`), nil
	}

	if _, err := prober.Probe(context.Background(), "-f"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(got) < 2 || got[len(got)-2] != "-i" || got[len(got)-1] != "-f" {
		t.Fatalf("expected input behind -i, got %v", got)
	}
}
