package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.viam.com/rdk/components/camera"
)

// ErrNoFrame is returned when a camera answers without an image.
var ErrNoFrame = errors.New("camera returned no images")

// GrabFrame returns the first image cam reports.
func GrabFrame(ctx context.Context, cam camera.Camera) (image.Image, error) {
	imgs, _, err := cam.Images(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, ErrNoFrame
	}
	img, err := imgs[0].Image(ctx)
	if err != nil {
		return nil, fmt.Errorf("decoding %q frame: %w", imgs[0].SourceName, err)
	}
	return img, nil
}

// GrabPair fetches one frame from each view.
func GrabPair(ctx context.Context, yz, xz camera.Camera) (yzImg, xzImg image.Image, err error) {
	yzImg, err = GrabFrame(ctx, yz)
	if err != nil {
		return nil, nil, fmt.Errorf("yz camera: %w", err)
	}
	xzImg, err = GrabFrame(ctx, xz)
	if err != nil {
		return nil, nil, fmt.Errorf("xz camera: %w", err)
	}
	return yzImg, xzImg, nil
}
