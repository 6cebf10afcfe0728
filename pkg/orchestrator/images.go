package orchestrator

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"storyloom/pkg/entities"
	"storyloom/pkg/generation"
	"storyloom/pkg/placeholder"
	"storyloom/pkg/prompt"
)

// startStorybook generates the storybook text in the background and fans out
// image requests once the pages arrive. Called with mu held.
func (f *Flow) startStorybook() {
	req := f.request(entities.ContentStorybook)
	gen, epoch, ctx := f.gen, f.epoch, f.ctx
	f.textPending = true

	f.spawn(func() {
		content, err := gen.GenerateContent(ctx, req)

		f.mu.Lock()
		defer f.mu.Unlock()
		if epoch != f.epoch {
			return
		}
		f.textPending = false
		if err != nil {
			log.Warn("storybook generation failed", "session", f.id, "error", err)
			f.state.CurrentStep = entities.StepSummaryReady
			f.state.Error = publicMessage(err)
			f.persist()
			return
		}

		pages := make([]entities.StoryPage, len(content.Pages))
		ids := make([]int, len(content.Pages))
		for i, p := range content.Pages {
			pages[i] = entities.StoryPage{
				ID:               p.ID,
				Title:            p.Title,
				Content:          p.Content,
				ImageDescription: p.ImageDescription,
			}
			ids[i] = p.ID
		}
		f.state.CurrentStorybook = pages
		f.fanOut(ids, false)
		f.persist()
	})
}

type pageJob struct {
	id     int
	prompt string
}

// fanOut requests one image per page id, each resolving on its own. Called
// with mu held.
func (f *Flow) fanOut(ids []int, force bool) {
	var jobs []pageJob
	for _, id := range ids {
		p := f.state.Page(id)
		if p == nil || f.pending[id] {
			continue
		}
		p.BeginImage()
		f.pending[id] = true
		jobs = append(jobs, pageJob{id: id, prompt: prompt.Image(f.state.CurrentTopic, *p)})
	}
	if len(jobs) == 0 {
		return
	}

	gen, epoch, ctx := f.gen, f.epoch, f.ctx
	f.spawn(func() {
		var g errgroup.Group
		for _, job := range jobs {
			g.Go(func() error {
				if err := f.sem.Acquire(ctx, 1); err != nil {
					return nil
				}
				defer f.sem.Release(1)

				url := illustrate(ctx, gen, job.prompt, job.id, force)
				f.resolvePage(epoch, job.id, url)
				return nil
			})
		}
		_ = g.Wait()
	})
}

func (f *Flow) resolvePage(epoch uint64, id int, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if epoch != f.epoch {
		return
	}
	delete(f.pending, id)
	p := f.state.Page(id)
	if p == nil {
		return
	}
	p.ResolveImage(url)
	f.persist()
}

// startMemeImage illustrates the current caption. Called with mu held.
func (f *Flow) startMemeImage(force bool) {
	if f.memePending || f.state.CurrentMemeData.Text == "" {
		return
	}
	f.memePending = true
	f.state.CurrentMemeData.BeginImage()

	gen, epoch, ctx := f.gen, f.epoch, f.ctx
	p := prompt.MemeImage(f.state.CurrentTopic, f.state.CurrentMemeData.Text)
	f.spawn(func() {
		url := illustrate(ctx, gen, p, 0, force)

		f.mu.Lock()
		defer f.mu.Unlock()
		if epoch != f.epoch {
			return
		}
		f.memePending = false
		f.state.CurrentMemeData.ResolveImage(url)
		f.persist()
	})
}

// illustrate always yields a displayable URL; any failure becomes the
// failure placeholder so nothing is left loading.
func illustrate(ctx context.Context, gen Generator, p string, pageID int, force bool) string {
	var (
		img generation.Image
		err error
	)
	if r, ok := gen.(Regenerator); ok && force {
		img, err = r.RegenerateImage(ctx, p, pageID)
	} else {
		img, err = gen.GenerateImage(ctx, p, pageID)
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("image request failed", "page", pageID, "error", err)
		}
		return placeholder.Failure()
	}
	if img.URL == "" {
		return placeholder.Failure()
	}
	return img.URL
}

// needsRepair reports a page without a usable image and nothing in flight.
// A page still marked loading with nothing pending was interrupted, e.g. by a
// restart. Called with mu held.
func (f *Flow) needsRepair(p entities.StoryPage) bool {
	if f.pending[p.ID] {
		return false
	}
	return p.ImageLoading || p.NeedsImage(placeholder.Failure())
}

// Resume repairs the content on display: pages without a usable image and a
// meme without an image are re-requested. It acts once per viewed item;
// Remount re-arms it.
func (f *Flow) Resume(_ context.Context) entities.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resume()
	return f.snapshot()
}

// Remount re-arms the one-shot repair, as after a client reload, and resumes.
func (f *Flow) Remount(ctx context.Context) entities.SessionState {
	f.mu.Lock()
	f.repaired = false
	f.mu.Unlock()
	return f.Resume(ctx)
}

// Called with mu held.
func (f *Flow) resume() {
	if f.state.ViewingEntryID != f.repairedFor {
		f.repaired = false
	}
	step := f.state.CurrentStep
	if f.repaired || (step != entities.StepContentDisplay && step != entities.StepLibraryView) {
		return
	}
	f.repaired = true
	f.repairedFor = f.state.ViewingEntryID

	if f.state.CurrentTextLength.IsMeme() {
		m := f.state.CurrentMemeData
		if !f.memePending && m.Text != "" && (m.ImageLoading || m.NeedsImage(placeholder.Failure())) {
			log.Info("repairing meme image", "session", f.id)
			f.startMemeImage(false)
			f.persist()
		}
		return
	}

	if step == entities.StepContentDisplay && len(f.state.CurrentStorybook) == 0 {
		if !f.textPending {
			log.Info("restarting interrupted storybook", "session", f.id)
			f.startStorybook()
		}
		return
	}

	var ids []int
	for _, p := range f.state.CurrentStorybook {
		if f.needsRepair(p) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) > 0 {
		log.Info("repairing page images", "session", f.id, "pages", len(ids))
		f.fanOut(ids, false)
		f.persist()
	}
}
