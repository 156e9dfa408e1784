package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	Password      string
	TestUserCount int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		Password:      "Password@123",
		TestUserCount: 4,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users         []*user.User
	Contacts      int
	Conversations []*conversation.Conversation
	Messages      []*message.Message
}

// SeedDevelopment creates demo users who are all contacts of each other,
// a direct chat between the first two and a group with everyone.
func SeedDevelopment(cfg *SeedConfig) (*SeedResult, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if cfg.TestUserCount < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", cfg.TestUserCount)
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	err := DB.Transaction(func(tx *gorm.DB) error {
		users, err := seedUsers(tx, cfg)
		if err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
		result.Users = users

		contacts, err := seedContacts(tx, users)
		if err != nil {
			return fmt.Errorf("failed to seed contacts: %w", err)
		}
		result.Contacts = contacts

		convs, err := seedConversations(tx, users)
		if err != nil {
			return fmt.Errorf("failed to seed conversations: %w", err)
		}
		result.Conversations = convs

		msgs, err := seedMessages(tx, convs)
		if err != nil {
			return fmt.Errorf("failed to seed messages: %w", err)
		}
		result.Messages = msgs
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database seeding completed")
	return result, nil
}

func seedUsers(tx *gorm.DB, cfg *SeedConfig) ([]*user.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]*user.User, 0, cfg.TestUserCount)
	for i := 1; i <= cfg.TestUserCount; i++ {
		username := fmt.Sprintf("user%d", i)

		var existing user.User
		if err := tx.Where("username = ?", username).First(&existing).Error; err == nil {
			log.Printf("User %s already exists, skipping creation", username)
			users = append(users, &existing)
			continue
		}

		now := time.Now().UTC()
		u := &user.User{
			ID:           uuid.New(),
			Username:     username,
			DisplayName:  fmt.Sprintf("Test User %d", i),
			PasswordHash: string(hashedPassword),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(u).Error; err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func seedContacts(tx *gorm.DB, users []*user.User) (int, error) {
	created := 0
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			a, b := users[i].ID, users[j].ID
			var count int64
			err := tx.Model(&user.Contact{}).
				Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
				Count(&count).Error
			if err != nil {
				return created, err
			}
			if count > 0 {
				continue
			}
			now := time.Now().UTC()
			c := &user.Contact{
				ID:          uuid.New(),
				RequesterID: a,
				AddresseeID: b,
				Status:      user.ContactAccepted,
				CreatedAt:   now,
				RespondedAt: &now,
			}
			if err := tx.Create(c).Error; err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func seedConversations(tx *gorm.DB, users []*user.User) ([]*conversation.Conversation, error) {
	now := time.Now().UTC()

	direct := &conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		CreatedBy: users[0].ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	group := &conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		Name:      "Everyone",
		CreatedBy: users[0].ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	participants := []conversation.Participant{
		{ConversationID: direct.ID, UserID: users[0].ID, Role: conversation.RoleMember, JoinedAt: now},
		{ConversationID: direct.ID, UserID: users[1].ID, Role: conversation.RoleMember, JoinedAt: now},
	}
	for i, u := range users {
		role := conversation.RoleMember
		if i == 0 {
			role = conversation.RoleAdmin
		}
		participants = append(participants, conversation.Participant{
			ConversationID: group.ID, UserID: u.ID, Role: role, JoinedAt: now,
		})
	}

	for _, c := range []*conversation.Conversation{direct, group} {
		if err := tx.Omit("Participants").Create(c).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Create(&participants).Error; err != nil {
		return nil, err
	}
	return []*conversation.Conversation{direct, group}, nil
}

func seedMessages(tx *gorm.DB, convs []*conversation.Conversation) ([]*message.Message, error) {
	var msgs []*message.Message
	for _, c := range convs {
		var participants []conversation.Participant
		if err := tx.Where("conversation_id = ?", c.ID).Find(&participants).Error; err != nil {
			return nil, err
		}
		for i, p := range participants {
			m := &message.Message{
				ID:             uuid.New(),
				ConversationID: c.ID,
				SenderID:       p.UserID,
				Type:           message.TypeText,
				Content:        fmt.Sprintf("Hello #%d", i+1),
				CreatedAt:      time.Now().UTC().Add(time.Duration(i) * time.Second),
			}
			if err := tx.Create(m).Error; err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
