package user

import "context"

// Service handles account lookups and registration. Password hashing and
// token issuing live in the auth package; this layer only stores what it
// is given.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a new account with the member role. Uniqueness is
// enforced by the email constraint, so concurrent registrations for the
// same address resolve to a single winner and ErrAlreadyExists for the
// rest.
func (s *Service) Register(ctx context.Context, email, username, hashedPassword string) (User, error) {
	u := User{
		Email:    email,
		Username: username,
		Password: hashedPassword,
		Role:     RoleUser,
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, email)
}
