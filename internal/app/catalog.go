package app

import (
	"context"

	"quizz-service/internal/domain"
)

// Catalog creates the entities the quiz core reads. It stands in for the
// administrative tooling; creation helpers return domain.ErrAlreadyExists on
// uniqueness violations.
type Catalog interface {
	// CreatePerson stores a person together with its companion profile.
	CreatePerson(ctx context.Context, person domain.Person, profile domain.Profile) (domain.Person, error)
	CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error)
	// CreateQuiz stores the quiz and every question without an ID, keeping
	// the given question order.
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	CreateSending(ctx context.Context, sending domain.Sending) (domain.Sending, error)
	// DeleteSending removes a sending and its answers.
	DeleteSending(ctx context.Context, id string) error
}

// Enroll creates persons from emails and a group holding all of them.
func Enroll(ctx context.Context, c Catalog, groupName string, emails ...string) (domain.Group, []domain.Person, error) {
	group := domain.NewGroup(groupName)
	persons := make([]domain.Person, 0, len(emails))
	for _, email := range emails {
		p, profile := domain.NewPerson(email, "", "")
		created, err := c.CreatePerson(ctx, p, profile)
		if err != nil {
			return domain.Group{}, nil, err
		}
		persons = append(persons, created)
		group.PersonIDs = append(group.PersonIDs, created.ID)
	}
	group, err := c.CreateGroup(ctx, group)
	if err != nil {
		return domain.Group{}, nil, err
	}
	return group, persons, nil
}
