package tools

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

const defaultImageModel = "imagen-3.0-generate-002"

// GeneratedImage is one rendered image.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator renders an image from a text prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (GeneratedImage, error)
}

// GenaiImageGenerator renders images with the Imagen models.
type GenaiImageGenerator struct {
	client *genai.Client
	model  string
}

func NewGenaiImageGenerator(client *genai.Client, model string) *GenaiImageGenerator {
	if model == "" {
		model = defaultImageModel
	}
	return &GenaiImageGenerator{client: client, model: model}
}

func (g *GenaiImageGenerator) Generate(ctx context.Context, prompt string) (GeneratedImage, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return GeneratedImage{}, fmt.Errorf("image model returned no image")
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return GeneratedImage{Data: img.ImageBytes, MIMEType: mime}, nil
}

// ImageHandler exposes rendering as the generateImage tool. The image
// bytes travel on an image_generated side-channel event; the model
// only sees a confirmation, keeping megabytes of base64 out of its
// context.
func ImageHandler(generator ImageGenerator) *Handler {
	return &Handler{
		Name:        "generateImage",
		Description: "Generate an image from a text description and show it to the user.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"prompt": {Type: genai.TypeString, Description: "What the image should depict."},
			},
			Required: []string{"prompt"},
		},
		Run: func(ctx context.Context, _ *auth.Context, args map[string]any) (Outcome, error) {
			prompt := stringArg(args, "prompt")
			if prompt == "" {
				return Outcome{}, fmt.Errorf("prompt is required")
			}
			img, err := generator.Generate(ctx, prompt)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Response: map[string]any{
					"generated":   true,
					"description": prompt,
				},
				SideChannel: &SideChannel{
					Event: "image_generated",
					Payload: map[string]any{
						"imageData":   base64.StdEncoding.EncodeToString(img.Data),
						"mimeType":    img.MIMEType,
						"description": prompt,
					},
				},
			}, nil
		},
	}
}

// DefaultRegistry builds the standard tool table. Clients that are not
// configured are left out so the model never sees tools that cannot
// run.
func DefaultRegistry(weather *WeatherClient, directions *DirectionsClient, google *GoogleClient, notes NoteStore, images ImageGenerator) *Registry {
	var handlers []*Handler
	if weather.Configured() {
		handlers = append(handlers, WeatherHandler(weather))
	}
	if directions.Configured() {
		handlers = append(handlers, DirectionsHandler(directions))
	}
	if google != nil {
		handlers = append(handlers,
			ListGmailHandler(google),
			SendGmailHandler(google),
			ListCalendarHandler(google),
			CreateCalendarHandler(google),
		)
	}
	if notes != nil {
		handlers = append(handlers, SaveNoteHandler(notes), ListNotesHandler(notes))
	}
	if images != nil {
		handlers = append(handlers, ImageHandler(images))
	}
	handlers = append(handlers, TimeHandler(nil))
	return NewRegistry(handlers...)
}
