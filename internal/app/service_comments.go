package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/mention"
	"github.com/joshua0006/architect-hub-sub005/internal/search"
	"github.com/joshua0006/architect-hub-sub005/internal/store"
	"github.com/joshua0006/architect-hub-sub005/internal/util"
)

func commentPayload(c store.Comment, mentionedIDs []string) map[string]any {
	if mentionedIDs == nil {
		mentionedIDs = []string{}
	}
	return map[string]any{
		"id":         c.ID,
		"documentId": c.DocumentID,
		"authorId":   c.AuthorID,
		"authorName": c.AuthorName,
		"body":       c.Body,
		"bodyHtml":   c.BodyHTML,
		"page":       c.Page,
		"anchor":     c.Anchor,
		"mentions":   mentionedIDs,
		"createdAt":  c.CreatedAt.Format(time.RFC3339),
		"updatedAt":  c.UpdatedAt.Format(time.RFC3339),
	}
}

// processMentions runs the extraction and resolution pipeline over a comment
// body. The directory snapshot is fetched once and shared by every concurrent
// lookup in the batch. A directory failure degrades to a plain comment; it
// never blocks the write.
func (s *Service) processMentions(ctx context.Context, body string) (bodyHTML string, userIDs []string) {
	tokens := mention.Extract(body)
	if len(tokens) == 0 {
		return body, nil
	}

	users, err := s.store.ListActiveUsers(ctx)
	if err != nil {
		log.Printf("app: mention directory unavailable: %v", err)
		return body, nil
	}
	entries := make([]mention.DirectoryEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, mention.DirectoryEntry{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Email:       u.Email,
		})
	}
	directory := mention.NewDirectory(entries)

	resolved := mention.Resolve(ctx, tokens, directory.Resolve)
	spans := make([]mention.Token, 0, len(resolved))
	for _, r := range resolved {
		spans = append(spans, r.Token)
	}
	return mention.FormatHTML(body, spans), mention.UserIDs(resolved)
}

func (s *Service) CreateComment(ctx context.Context, session Session, projectID, documentID, body, anchor string, page *int) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}

	bodyHTML, mentionedIDs := s.processMentions(ctx, body)

	comment := store.Comment{
		ID:         util.NewID("cmt"),
		DocumentID: documentID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       body,
		BodyHTML:   bodyHTML,
		Page:       page,
		Anchor:     strings.TrimSpace(anchor),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	if len(mentionedIDs) > 0 {
		if err := s.store.ReplaceCommentMentions(ctx, comment.ID, mentionedIDs); err != nil {
			log.Printf("app: persist mentions for %s: %v", comment.ID, err)
		}
		s.notifyMentions(ctx, session, doc, comment, mentionedIDs)
	}
	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:         comment.ID,
			Body:       comment.Body,
			AuthorName: comment.AuthorName,
			DocumentID: documentID,
			ProjectID:  projectID,
		})
	}
	return commentPayload(comment, mentionedIDs), nil
}

func (s *Service) EditComment(ctx context.Context, session Session, projectID, documentID, commentID, body string) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if existing.DocumentID != documentID {
		return nil, sql.ErrNoRows
	}
	if existing.AuthorID != session.UserID && !s.Can(session.Role, "manage") {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can edit a comment", nil)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}

	previous, err := s.store.ListCommentMentions(ctx, commentID)
	if err != nil {
		log.Printf("app: list mentions for %s: %v", commentID, err)
	}
	known := make(map[string]bool, len(previous))
	for _, id := range previous {
		known[id] = true
	}

	bodyHTML, mentionedIDs := s.processMentions(ctx, body)
	if err := s.store.UpdateComment(ctx, commentID, body, bodyHTML); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceCommentMentions(ctx, commentID, mentionedIDs); err != nil {
		log.Printf("app: persist mentions for %s: %v", commentID, err)
	}

	// Only mentions added by the edit notify; re-saving an unchanged body
	// must not ping everyone again.
	added := make([]string, 0, len(mentionedIDs))
	for _, id := range mentionedIDs {
		if !known[id] {
			added = append(added, id)
		}
	}
	existing.Body = body
	existing.BodyHTML = bodyHTML
	if len(added) > 0 {
		s.notifyMentions(ctx, session, doc, existing, added)
	}
	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:         commentID,
			Body:       body,
			AuthorName: existing.AuthorName,
			DocumentID: documentID,
			ProjectID:  projectID,
		})
	}
	return commentPayload(existing, mentionedIDs), nil
}

func (s *Service) DeleteComment(ctx context.Context, session Session, projectID, documentID, commentID string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if existing.DocumentID != documentID {
		return sql.ErrNoRows
	}
	if existing.AuthorID != session.UserID && !s.Can(session.Role, "manage") {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can delete a comment", nil)
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteComment(commentID)
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, session Session, projectID, documentID string) ([]map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	comments, err := s.store.ListComments(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		mentions, err := s.store.ListCommentMentions(ctx, c.ID)
		if err != nil {
			log.Printf("app: list mentions for %s: %v", c.ID, err)
		}
		items = append(items, commentPayload(c, mentions))
	}
	return items, nil
}

const notificationPreviewLimit = 120

// notifyMentions writes in-app notification rows and sends emails. Both are
// best-effort; the comment is already committed.
func (s *Service) notifyMentions(ctx context.Context, session Session, doc store.Document, comment store.Comment, userIDs []string) {
	preview := comment.Body
	if runes := []rune(preview); len(runes) > notificationPreviewLimit {
		preview = string(runes[:notificationPreviewLimit]) + "…"
	}

	for _, userID := range userIDs {
		if userID == session.UserID {
			continue
		}
		if err := s.store.InsertNotification(ctx, store.Notification{
			ID:         util.NewID("ntf"),
			UserID:     userID,
			ActorName:  session.UserName,
			Kind:       "mention",
			CommentID:  comment.ID,
			DocumentID: doc.ID,
			Preview:    preview,
		}); err != nil {
			log.Printf("app: insert notification for %s: %v", userID, err)
			continue
		}
		if !s.SMTPConfigured() {
			continue
		}
		recipient, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			log.Printf("app: load mention recipient %s: %v", userID, err)
			continue
		}
		documentURL := s.cfg.BaseURL + "/projects/" + doc.ProjectID + "/documents/" + doc.ID
		go func(to, name string) {
			if err := s.email.SendMentionEmail(to, name, session.UserName, doc.Name, comment.BodyHTML, documentURL); err != nil {
				log.Printf("app: mention email to %s: %v", to, err)
			}
		}(recipient.Email, recipient.DisplayName)
	}
}

func (s *Service) ListNotifications(ctx context.Context, session Session, unreadOnly bool) ([]map[string]any, error) {
	notifications, err := s.store.ListNotifications(ctx, session.UserID, unreadOnly)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		item := map[string]any{
			"id":         n.ID,
			"actorName":  n.ActorName,
			"kind":       n.Kind,
			"commentId":  n.CommentID,
			"documentId": n.DocumentID,
			"preview":    n.Preview,
			"read":       n.ReadAt != nil,
			"createdAt":  n.CreatedAt.Format(time.RFC3339),
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}
