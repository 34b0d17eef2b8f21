package habitservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
)

// Login looks email up in the users table. There is no password.
func (s *Service) Login(ctx context.Context, email string) (models.User, error) {
	email = models.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	users, err := s.repo.Users(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if models.NormalizeEmail(u.Email) == email {
			u.Email = email
			return u, nil
		}
	}
	return models.User{}, apperr.ErrNotFound
}

// SignUp registers a user. The name defaults to the email local part. An
// unconfigured write endpoint still lets the user in.
func (s *Service) SignUp(ctx context.Context, name, email string) (models.User, error) {
	email = models.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	u := models.User{Name: strings.TrimSpace(name), Email: email}
	if u.Name == "" {
		u.Name = models.DisplayName(email)
	}

	if _, err := s.Login(ctx, email); err == nil {
		return models.User{}, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, email)
	}
	err := s.writer.CreateUser(ctx, u)
	switch {
	case errors.Is(err, apperr.ErrNotConfigured):
		s.log.Warn("signup without a configured write endpoint", "email", email)
	case err != nil:
		return models.User{}, fmt.Errorf("sign up: %w", err)
	}
	return u, nil
}

// SearchUsers returns users whose email contains term, excluding me.
func (s *Service) SearchUsers(ctx context.Context, me, term string) ([]models.User, error) {
	me = models.NormalizeEmail(me)
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.User, 0)
	if term == "" {
		return out, nil
	}
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		email := models.NormalizeEmail(u.Email)
		if email == me || !strings.Contains(email, term) {
			continue
		}
		u.Email = email
		out = append(out, u)
	}
	return out, nil
}

// Friends returns the edges involving email.
func (s *Service) Friends(ctx context.Context, email string) ([]models.Friend, error) {
	return s.repo.Friends(ctx, email)
}

func (s *Service) friendWrite(ctx context.Context, write func() error, emails ...string) error {
	s.repo.Invalidate(ctx)
	err := write()
	s.repo.Invalidate(ctx)
	if err != nil {
		return err
	}
	s.notifier.Notify(KindFriends, emails...)
	return nil
}

// RequestFriend sends a request from me to receiver.
func (s *Service) RequestFriend(ctx context.Context, me, receiver string) error {
	me, receiver = models.NormalizeEmail(me), models.NormalizeEmail(receiver)
	if err := validateEmail(receiver); err != nil {
		return err
	}
	if me == receiver {
		return invalid("cannot befriend yourself")
	}
	edges, err := s.repo.Friends(ctx, me)
	if err != nil {
		return err
	}
	for _, f := range edges {
		if f.Involves(receiver) && f.Status != models.FriendRejected {
			return fmt.Errorf("%w: friendship with %s is %s", apperr.ErrAlreadyExists, receiver, f.Status)
		}
	}
	return s.friendWrite(ctx, func() error {
		return s.writer.RequestFriend(ctx, me, receiver)
	}, me, receiver)
}

// RespondFriend accepts or rejects the pending request requester sent to me.
func (s *Service) RespondFriend(ctx context.Context, me, requester string, accept bool) error {
	me, requester = models.NormalizeEmail(me), models.NormalizeEmail(requester)
	edges, err := s.repo.Friends(ctx, me)
	if err != nil {
		return err
	}
	found := false
	for _, f := range edges {
		if f.Requester == requester && f.Receiver == me && f.Status == models.FriendPending {
			found = true
			break
		}
	}
	if !found {
		return apperr.ErrNotFound
	}
	status := models.FriendRejected
	if accept {
		status = models.FriendAccepted
	}
	return s.friendWrite(ctx, func() error {
		return s.writer.RespondFriend(ctx, requester, me, status)
	}, me, requester)
}

// RemoveFriend deletes the edge between me and friend.
func (s *Service) RemoveFriend(ctx context.Context, me, friend string) error {
	me, friend = models.NormalizeEmail(me), models.NormalizeEmail(friend)
	return s.friendWrite(ctx, func() error {
		return s.writer.RemoveFriend(ctx, me, friend)
	}, me, friend)
}
