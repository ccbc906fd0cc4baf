package config

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Promo: Promo{
			FPS:          30,
			Output:       "media/promo-sample.mp4",
			Rasterizer:   "vector",
			FitzDPI:      72,
			FFmpegPath:   "ffmpeg",
			Codec:        "libx264",
			PixelFormat:  "yuv420p",
			Quality:      20,
			Preset:       "medium",
			BenchmarkLog: "benchmark.log",
		},
		Site: Site{
			Addr:          ":3000",
			Database:      "database.sqlite",
			GalleryDir:    "assets/gallery",
			MediaDir:      "media",
			SessionHours:  24,
			AdminUser:     "nstyle2025",
			AdminPassword: "password",
			UploadLimitMB: 5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}
