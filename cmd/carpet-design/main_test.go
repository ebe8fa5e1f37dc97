package main

import (
	"testing"

	"github.com/ironsheep/carpet-design/internal/config"
	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/profile"
	"github.com/ironsheep/carpet-design/internal/quantize"
)

func TestCustomPalette(t *testing.T) {
	earlier := quantize.Palette{{R: 139, G: 30, B: 45}, {R: 245, G: 240, B: 230}, {R: 20, G: 40, B: 90}}
	path, err := quantize.WriteColorInfo(t.TempDir(), earlier)
	if err != nil {
		t.Fatalf("WriteColorInfo failed: %v", err)
	}
	prof := profile.NewProfile(50, 12, quantize.Palette{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}})

	tests := []struct {
		name    string
		opts    options
		prof    *profile.Profile
		want    quantize.Palette
		wantErr bool
	}{
		{"none", options{}, nil, nil, false},
		{"from file", options{paletteFile: path}, nil, earlier, false},
		{"file wins over profile", options{paletteFile: path}, &prof, earlier, false},
		{"flag", options{palette: "#ff0000,#00ff00"}, &prof, quantize.Palette{{R: 255}, {G: 255}}, false},
		{"profile", options{}, &prof, quantize.Palette{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}, false},
		{"both flags", options{palette: "#ff0000", paletteFile: path}, nil, nil, true},
		{"missing file", options{paletteFile: path + ".missing"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := customPalette(&tt.opts, tt.prof)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("palette: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("colour %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCarpetSpec(t *testing.T) {
	prof := profile.NewProfile(40, 40, nil)

	tests := []struct {
		name string
		opts options
		prof *profile.Profile
		want *geometry.CarpetSpec
	}{
		{"nothing given", options{}, nil, nil},
		{"densities only", options{shaneh: 30}, nil, &geometry.CarpetSpec{WidthCM: 200, HeightCM: 300, Shaneh: 30, Tar: 12}},
		{"profile", options{width: 100}, &prof, &geometry.CarpetSpec{WidthCM: 100, HeightCM: 300, Shaneh: 40, Tar: 40}},
		{"flag wins over profile", options{tar: 20}, &prof, &geometry.CarpetSpec{WidthCM: 200, HeightCM: 300, Shaneh: 40, Tar: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := carpetSpec(&tt.opts, config.Default(), tt.prof)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("got %+v, want %+v", *got, *tt.want)
			}
		})
	}
}
