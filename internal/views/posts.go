package views

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// PostFeed is the home feed, a community feed or a profile's posts
type PostFeed struct {
	*list[models.Post, models.PostFilter]
}

// HomeFeed lists posts newest first. The filter narrows it to a
// community or an author.
func HomeFeed(vc *Context, filter models.PostFilter) *PostFeed {
	return &PostFeed{list: newList(vc, vc.sources.Posts, filter, feed.Options[models.Post, models.PostFilter]{
		Scope: "home-feed",
		Less:  newestPostFirst,
		Match: func(f models.PostFilter, p models.Post) bool { return f.Match(p) },
		Realtime: func(f models.PostFilter) []realtime.Filter {
			switch {
			case f.CommunityID != "":
				return []realtime.Filter{realtime.Eq("posts", "community_id", f.CommunityID)}
			case f.AuthorID != "":
				return []realtime.Filter{realtime.Eq("posts", "author_id", f.AuthorID)}
			default:
				return []realtime.Filter{realtime.Table("posts")}
			}
		},
	})}
}

func newestPostFirst(a, b models.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Search narrows the feed after the user stops typing
func (v *PostFeed) Search(q string) {
	f := v.Filter()
	f.Search = q
	v.ctl.SetFilterDebounced(f)
}

// Compose shows the new post at once and keeps it if the server stores it
func (v *PostFeed) Compose(ctx context.Context, content, imageURL string) error {
	user := v.vc.userID()
	if user == "" {
		return apperr.Unauthorized("Sign in to continue")
	}
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return apperr.InvalidField("content", "Write something or add a photo")
	}
	post := models.Post{
		ID:        uuid.NewString(),
		AuthorID:  user,
		Content:   content,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
		Author:    v.vc.profile(),
	}
	if f := v.Filter(); f.CommunityID != "" {
		post.CommunityID = &f.CommunityID
	}
	return v.ctl.Create(ctx, post, v.vc.sources.Posts.Create)
}

// Delete removes one of the user's posts
func (v *PostFeed) Delete(ctx context.Context, id string) error {
	if err := v.vc.sources.Posts.Delete(ctx, id); err != nil {
		return err
	}
	v.ctl.Remove(id)
	return nil
}
