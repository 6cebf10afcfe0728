package gateway

import "storyloom/pkg/entities"

const (
	summaryBudget  = 1024
	memeBudget     = 1024
	storybookFloor = 2048
	storybookCap   = 16384
	tokensPerPage  = 400
	storybookExtra = 512
)

// MaxOutputTokens is the completion budget for a content type. Storybooks
// scale with their page count so long books are not truncated mid-JSON.
func MaxOutputTokens(t entities.ContentType, pages int) int {
	switch t {
	case entities.ContentStorybook:
		n := max(storybookFloor, tokensPerPage*pages+storybookExtra)
		return min(n, storybookCap)
	case entities.ContentMemeText:
		return memeBudget
	}
	return summaryBudget
}
