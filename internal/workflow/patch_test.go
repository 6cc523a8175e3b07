package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestPatchPromptText_SingleEligibleNode(t *testing.T) {
	doc := mustDecode(t, `{
		"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "model.safetensors"}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "old prompt", "clip": ["4", 1]}}
	}`)

	require.NoError(t, PatchPromptText(doc, "a red fox in snow"))

	assert.Equal(t, "a red fox in snow", doc.Get("6").Inputs["text"])
	// other fields untouched
	assert.Equal(t, []interface{}{"4", float64(1)}, doc.Get("6").Inputs["clip"])
	assert.Equal(t, "model.safetensors", doc.Get("4").Inputs["ckpt_name"])
}

func TestPatchPromptText_SkipsNegativeTitledNode(t *testing.T) {
	doc := mustDecode(t, `{
		"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "blurry, low quality"}, "_meta": {"title": "CLIP Text Encode (Negative)"}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "old"}, "_meta": {"title": "CLIP Text Encode (Positive)"}}
	}`)

	require.NoError(t, PatchPromptText(doc, "new prompt"))

	assert.Equal(t, "blurry, low quality", doc.Get("7").Inputs["text"], "negative node must never be patched")
	assert.Equal(t, "new prompt", doc.Get("6").Inputs["text"])
}

func TestPatchPromptText_NegativeTitleAnyCase(t *testing.T) {
	doc := mustDecode(t, `{
		"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "bad"}, "_meta": {"title": "NEGATIVE prompt"}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "old"}}
	}`)

	require.NoError(t, PatchPromptText(doc, "new"))
	assert.Equal(t, "bad", doc.Get("7").Inputs["text"])
	assert.Equal(t, "new", doc.Get("6").Inputs["text"])
}

func TestPatchPromptText_OnlyFirstMatchPatched(t *testing.T) {
	doc := mustDecode(t, `{
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "first"}},
		"8": {"class_type": "CLIPTextEncode", "inputs": {"text": "second"}}
	}`)

	require.NoError(t, PatchPromptText(doc, "patched"))
	assert.Equal(t, "patched", doc.Get("6").Inputs["text"])
	assert.Equal(t, "second", doc.Get("8").Inputs["text"])
}

func TestPatchPromptText_SkipsNodeWithoutTextInput(t *testing.T) {
	doc := mustDecode(t, `{
		"5": {"class_type": "CLIPTextEncode", "inputs": {"clip": ["4", 1]}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "old"}}
	}`)

	require.NoError(t, PatchPromptText(doc, "new"))
	assert.NotContains(t, doc.Get("5").Inputs, "text", "patcher must not create inputs")
	assert.Equal(t, "new", doc.Get("6").Inputs["text"])
}

func TestPatchPromptText_NoEligibleNode(t *testing.T) {
	doc := mustDecode(t, `{
		"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "bad"}, "_meta": {"title": "Negative"}},
		"9": {"class_type": "SaveImage", "inputs": {"images": ["8", 0]}}
	}`)

	err := PatchPromptText(doc, "new")
	require.Error(t, err)

	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "CLIPTextEncode", notFound.ClassType)

	// nothing mutated
	assert.Equal(t, "bad", doc.Get("7").Inputs["text"])
}

func TestPatchLoadImage(t *testing.T) {
	doc := mustDecode(t, `{
		"10": {"class_type": "LoadImage", "inputs": {"image": "example.png", "upload": "image"}}
	}`)

	require.NoError(t, PatchLoadImage(doc, "uploaded_abc.png"))
	assert.Equal(t, "uploaded_abc.png", doc.Get("10").Inputs["image"])
	assert.Equal(t, "image", doc.Get("10").Inputs["upload"])
}

func TestPatchLoadImage_NoLoadImageNode(t *testing.T) {
	doc := mustDecode(t, `{
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat"}}
	}`)

	err := PatchLoadImage(doc, "uploaded.png")
	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "LoadImage", notFound.ClassType)
}
