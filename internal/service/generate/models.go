package generate

const (
	DefaultImageModel = "black-forest-labs/flux-schnell"
	DefaultVideoModel = "alibaba-pai/wan2.1-t2v-14b"
)

type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Speed       string `json:"speed"`
}

type Catalogue struct {
	Image []ModelInfo `json:"image"`
	Video []ModelInfo `json:"video"`
}

// Models is the static catalogue served by GET /api/generate/models.
var Models = Catalogue{
	Image: []ModelInfo{
		{ID: "black-forest-labs/flux-schnell", Name: "Flux Schnell", Description: "Fast, high quality", Speed: "Fast"},
		{ID: "black-forest-labs/flux-dev", Name: "Flux Dev", Description: "Higher quality, slower", Speed: "Medium"},
		{ID: "stability-ai/sdxl", Name: "Stable Diffusion XL", Description: "Classic SD model", Speed: "Medium"},
	},
	Video: []ModelInfo{
		{ID: "alibaba-pai/wan2.1-t2v-14b", Name: "Wan 2.1", Description: "Text to video", Speed: "Slow"},
		{ID: "minimax/video-01", Name: "MiniMax Video", Description: "High quality video", Speed: "Medium"},
	},
}
