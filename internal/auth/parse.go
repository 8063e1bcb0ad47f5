package auth

import "github.com/google/uuid"

func parseUUIDs(tokenID, projectID, userID string, dst *AuthContext) error {
	var err error
	if dst.TokenID, err = uuid.Parse(tokenID); err != nil {
		return err
	}
	if dst.ProjectID, err = uuid.Parse(projectID); err != nil {
		return err
	}
	dst.UserID, err = uuid.Parse(userID)
	return err
}
