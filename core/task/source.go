package task

import (
	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
)

// Source is the table a Task comes from. It decides where writes go.
type Source string

const (
	SourceGame     Source = "game"     // game links
	SourceMenu     Source = "menu"     // cafeteria orders
	SourceMaterial Source = "material" // material pickups
	SourceSteps    Source = "steps"    // step-by-step instructions
)

// Sources lists every Source in merge order.
var Sources = []Source{SourceGame, SourceMenu, SourceMaterial, SourceSteps}

var defaultImages = map[Source]string{
	SourceGame:     "/static/icons/game.svg",
	SourceMenu:     "/static/icons/menu.svg",
	SourceMaterial: "/static/icons/material.svg",
	SourceSteps:    "/static/icons/steps.svg",
}

var ErrUnknownSource = errors.New("unknown task source")

func ParseSource(s string) (Source, error) {
	src := Source(core.CleanString(s, true /* lower */))
	if !src.IsValid() {
		return "", ErrUnknownSource
	}
	return src, nil
}

func (s Source) IsValid() bool {
	_, ok := defaultImages[s]
	return ok
}

// DefaultImage is the icon shown for tasks of this source that have no image of their own.
func (s Source) DefaultImage() string {
	return defaultImages[s]
}
