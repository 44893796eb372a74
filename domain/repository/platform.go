package repository

import (
	"context"

	"storycast/domain/model"
)

// RenderedContent is what a platform client receives to publish: the story
// text plus a media URL that has already been validated and refreshed.
type RenderedContent struct {
	Text      string
	MediaURL  string
	MediaType model.MediaType
}

// Receipt identifies a successful publish on the remote platform.
type Receipt struct {
	ExternalID string
	URL        string
}

// RefreshedToken is the result of a credential refresh.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// IPlatformClient is one platform family's capability surface. Publish errors
// should be *model.PlatformError whenever the upstream response is available
// so the classifier can map them.
type IPlatformClient interface {
	Platform() model.Platform
	Publish(ctx context.Context, account *model.LinkedAccount, content RenderedContent) (*Receipt, error)
	VerifyTokenHealth(ctx context.Context, accessToken string) (bool, error)
	RefreshToken(ctx context.Context, account *model.LinkedAccount) (*RefreshedToken, error)
}
