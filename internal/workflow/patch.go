package workflow

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	classTextEncode = "CLIPTextEncode"
	classLoadImage  = "LoadImage"
)

// NodeNotFoundError indicates no node in the document matched a patcher's
// class type and input constraints.
type NodeNotFoundError struct {
	ClassType  string
	Constraint string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("no %s node %s found in workflow", e.ClassType, e.Constraint)
}

// PatchPromptText overwrites the "text" input of the first CLIPTextEncode node
// that is not a negative prompt. Nodes whose _meta title contains "negative"
// (any case) are skipped. Only the first match is patched; later eligible
// nodes are left alone.
func PatchPromptText(doc *Document, promptText string) error {
	for _, entry := range doc.Nodes() {
		if entry.Node.ClassType != classTextEncode {
			continue
		}
		title := strings.ToLower(entry.Node.Title())
		if strings.Contains(title, "negative") {
			continue
		}
		if _, ok := entry.Node.Inputs["text"]; !ok {
			continue
		}
		logrus.Infof("Patching CLIPTextEncode node %s (title: %s) with new prompt", entry.ID, title)
		entry.Node.Inputs["text"] = promptText
		return nil
	}
	return &NodeNotFoundError{ClassType: classTextEncode, Constraint: `(non-negative) with "text" input`}
}

// PatchLoadImage overwrites the "image" input of the first LoadImage node with
// the server-assigned filename of an uploaded image.
func PatchLoadImage(doc *Document, imageName string) error {
	for _, entry := range doc.Nodes() {
		if entry.Node.ClassType != classLoadImage {
			continue
		}
		if _, ok := entry.Node.Inputs["image"]; !ok {
			continue
		}
		logrus.Infof("Patching LoadImage node %s with uploaded image filename", entry.ID)
		entry.Node.Inputs["image"] = imageName
		return nil
	}
	return &NodeNotFoundError{ClassType: classLoadImage, Constraint: `with "image" input`}
}
