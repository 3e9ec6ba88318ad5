package models

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func createTestGuardian(t *testing.T, user *User, email string) *Guardian {
	t.Helper()

	guardian := &Guardian{
		FirstName:    "happy",
		LastName:     "hogan",
		Email:        email,
		Relationship: "friend",
		UserID:       user.ID,
	}
	err := CreateGuardian(guardian)
	assert.Nil(t, err, "Should create guardian record")

	return guardian
}

func TestAssignAndListEscalationChain(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")
	g2 := createTestGuardian(t, user, "potts@avengers.com")

	// assign out of order on purpose - list must sort by priority
	assert.Nil(t, AssignEscalationGuardian(user.ID, g2.ID, 2))
	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 1))

	chain, err := EscalationChain(user.ID)
	assert.Nil(t, err)
	assert.Len(t, chain, 2)
	assert.Equal(t, 1, chain[0].Priority)
	assert.Equal(t, g1.ID, chain[0].Guardian.ID)
	assert.Equal(t, 2, chain[1].Priority)
	assert.Equal(t, g2.ID, chain[1].Guardian.ID)
	assert.Equal(t, "hogan@avengers.com", chain[0].Guardian.Email)
}

func TestAssignDuplicatePriority(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")
	g2 := createTestGuardian(t, user, "potts@avengers.com")

	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 1))

	err := AssignEscalationGuardian(user.ID, g2.ID, 1)
	assert.ErrorIs(t, err, ErrPriorityInUse)
}

func TestAssignGuardianTwice(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")

	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 1))

	// a different rank does not make a duplicate guardian acceptable,
	// and the conflict cause must name the guardian, not the priority
	err := AssignEscalationGuardian(user.ID, g1.ID, 3)
	assert.ErrorIs(t, err, ErrGuardianAlreadyAssigned)
}

func TestAssignForeignGuardian(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	otherUser := createTestUser(t, "web@avengers.com")
	foreign := createTestGuardian(t, otherUser, "strange@avengers.com")

	err := AssignEscalationGuardian(user.ID, foreign.ID, 1)
	assert.ErrorIs(t, err, ErrGuardianNotOwned)

	chain, err := EscalationChain(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, chain, "A forbidden assign must never create a link")
}

func TestAssignMissingGuardian(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")

	err := AssignEscalationGuardian(user.ID, 999, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRemoveEscalationGuardianIsIdempotent(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")

	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 1))

	assert.Nil(t, RemoveEscalationGuardian(user.ID, g1.ID))
	assert.Nil(t, RemoveEscalationGuardian(user.ID, g1.ID), "Repeated removal must stay a no-op success")

	chain, err := EscalationChain(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, chain)
}

func TestReassignAfterRemove(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")
	g2 := createTestGuardian(t, user, "potts@avengers.com")

	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 1))
	assert.Nil(t, RemoveEscalationGuardian(user.ID, g1.ID))

	// both the rank & the guardian are free again
	assert.Nil(t, AssignEscalationGuardian(user.ID, g2.ID, 1))
	assert.Nil(t, AssignEscalationGuardian(user.ID, g1.ID, 2))

	chain, err := EscalationChain(user.ID)
	assert.Nil(t, err)
	assert.Len(t, chain, 2)
	assert.Equal(t, g2.ID, chain[0].Guardian.ID)
	assert.Equal(t, g1.ID, chain[1].Guardian.ID)
}

func TestConcurrentAssignsOnSamePriority(t *testing.T) {
	InitializeTestDb()
	user := createTestUser(t, "stark@avengers.com")
	g1 := createTestGuardian(t, user, "hogan@avengers.com")
	g2 := createTestGuardian(t, user, "potts@avengers.com")

	guardianIDs := []uint{g1.ID, g2.ID}
	results := make([]error, len(guardianIDs))

	wg := sync.WaitGroup{}
	for i, guardianID := range guardianIDs {
		wg.Add(1)
		go func(i int, guardianID uint) {
			defer wg.Done()
			results[i] = AssignEscalationGuardian(user.ID, guardianID, 1)
		}(i, guardianID)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrPriorityInUse):
			conflicts++
		default:
			t.Fatalf("unexpected error from concurrent assign: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "Exactly one concurrent assign should win the priority")
	assert.Equal(t, 1, conflicts, "The losing assign should see the priority conflict")

	chain, err := EscalationChain(user.ID)
	assert.Nil(t, err)
	assert.Len(t, chain, 1)
}
