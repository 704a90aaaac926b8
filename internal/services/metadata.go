package services

import (
	"context"
	"fmt"
	"strings"

	"recapstudio-backend/internal/models"
)

// MetadataLookup finds plot information for a title.
type MetadataLookup interface {
	Lookup(ctx context.Context, title, genre string) (*models.MovieInfo, error)
}

// CatalogLookup is an offline stand-in for a movie database: every title
// gets the same five-act outline.
type CatalogLookup struct{}

func (CatalogLookup) Lookup(ctx context.Context, title, genre string) (*models.MovieInfo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required for a metadata lookup")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.MovieInfo{
		Title: title,
		Genre: genre,
		Plot:  "A comprehensive plot summary for " + title,
		KeyScenes: []string{
			"Opening scene establishing the world",
			"Introduction of main characters",
			"Rising action and conflict development",
			"Climax and turning point",
			"Resolution and conclusion",
		},
		Themes: []string{"Adventure", "Character Development", "Conflict Resolution"},
		CriticalMoments: []models.CriticalMoment{
			{Timestamp: "00:15:00", Description: "First major plot point"},
			{Timestamp: "00:45:00", Description: "Midpoint twist"},
			{Timestamp: "01:30:00", Description: "Climactic scene"},
		},
	}, nil
}
