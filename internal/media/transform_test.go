package media

import "testing"

func TestTransformerURLs(t *testing.T) {
	tr := NewTransformer("https://cdn.example.com/", "videos")
	id := "videos/u1/clip"

	if got, want := tr.ThumbnailURL(id, ThumbnailOptions{}), "https://cdn.example.com/video/upload/w_300,h_300,c_fill,q_auto,f_jpg/videos/u1/clip"; got != want {
		t.Fatalf("thumbnail\n got %s\nwant %s", got, want)
	}
	if got, want := tr.PosterURL(id, PosterOptions{Width: 200, Time: 2.5}), "https://cdn.example.com/video/upload/w_200,h_300,c_fill,q_auto,f_jpg,so_2.5/videos/u1/clip"; got != want {
		t.Fatalf("poster\n got %s\nwant %s", got, want)
	}
	if got, want := tr.PosterURL(id, PosterOptions{}), "https://cdn.example.com/video/upload/w_300,h_300,c_fill,q_auto,f_jpg,so_1/videos/u1/clip"; got != want {
		t.Fatalf("default poster\n got %s\nwant %s", got, want)
	}
	if got, want := tr.OptimizedURL(id, OptimizedOptions{}), "https://cdn.example.com/video/upload/q_auto,f_mp4/videos/u1/clip"; got != want {
		t.Fatalf("optimized\n got %s\nwant %s", got, want)
	}
	if got, want := tr.OptimizedURL(id, OptimizedOptions{Height: 720, Format: "webm"}), "https://cdn.example.com/video/upload/h_720,c_scale,q_auto,f_webm/videos/u1/clip"; got != want {
		t.Fatalf("scaled optimized\n got %s\nwant %s", got, want)
	}
}

func TestResponsiveWidth(t *testing.T) {
	cases := map[int]int{0: 480, 767: 480, 768: 720, 1023: 720, 1024: 1280, 2560: 1280}
	for screen, want := range cases {
		if got := ResponsiveWidth(screen); got != want {
			t.Fatalf("screen %d: got %d want %d", screen, got, want)
		}
	}
	tr := NewTransformer("https://cdn.example.com", "videos")
	if got, want := tr.ResponsiveURL("videos/a", 800), "https://cdn.example.com/video/upload/w_720,c_scale,q_auto,f_mp4/videos/a"; got != want {
		t.Fatalf("responsive\n got %s\nwant %s", got, want)
	}
}

func TestPublicID(t *testing.T) {
	tr := NewTransformer("https://cdn.example.com", "videos")
	cases := map[string]string{
		"https://cdn.example.com/video/upload/v1712/videos/u1/clip.mov": "videos/u1/clip",
		"https://cdn.example.com/video/upload/videos/u1/clip.mp4":       "videos/u1/clip",
		"http://localhost:9000/media/videos/u1/clip.mp4":                "videos/u1/clip",
		"videos/u1/clip.mp4":                                            "videos/u1/clip",
	}
	for ref, want := range cases {
		got, err := tr.PublicID(ref)
		if err != nil {
			t.Fatalf("%s: %v", ref, err)
		}
		if got != want {
			t.Fatalf("%s: got %q want %q", ref, got, want)
		}
	}
	if _, err := tr.PublicID("  "); err == nil {
		t.Fatal("expected error for empty reference")
	}
}
