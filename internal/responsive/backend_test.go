package responsive

import (
	"image"
	"image/color"
	"testing"
)

func TestFlattenIgnoresBackgroundAlpha(t *testing.T) {
	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	bg, err := ParseHexColor("#33669980")
	if err != nil {
		t.Fatal(err)
	}

	out := ImagingBackend{}.Flatten(transparent, bg)
	got := color.NRGBAModel.Convert(out.At(1, 1)).(color.NRGBA)
	want := color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}
	if got != want {
		t.Errorf("flattened pixel = %v, want %v", got, want)
	}
	if hasAlpha(out) {
		t.Error("flattened image still reports alpha")
	}
}
