package vault

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/profitcast/profitcast/internal/shared"
)

func TestEvaluatePrecedence(t *testing.T) {
	owner := "user-owner"
	folder := Folder{
		ID:         "folder-1",
		Name:       "Client X",
		FolderType: FolderClient,
		OwnerID:    &owner,
		CreatedBy:  "user-creator",
	}

	cases := []struct {
		name      string
		principal shared.Principal
		hasGrant  bool
		want      Decision
	}{
		{
			name:      "super admin bypasses everything",
			principal: shared.Principal{UserID: "user-random", RoleLevel: shared.LevelSuperAdmin},
			want:      Allow,
		},
		{
			name:      "owner allowed without grant",
			principal: shared.Principal{UserID: owner, RoleLevel: shared.LevelEmployee},
			want:      Allow,
		},
		{
			name:      "creator allowed without grant",
			principal: shared.Principal{UserID: "user-creator", RoleLevel: shared.LevelEmployee},
			want:      Allow,
		},
		{
			name:      "grant holder allowed",
			principal: shared.Principal{UserID: "user-member", RoleLevel: shared.LevelEmployee},
			hasGrant:  true,
			want:      Allow,
		},
		{
			name:      "high level without grant still denied",
			principal: shared.Principal{UserID: "user-md", RoleLevel: shared.LevelManagingDirector},
			want:      Deny,
		},
		{
			name:      "stranger denied",
			principal: shared.Principal{UserID: "user-stranger", RoleLevel: shared.LevelEmployee},
			want:      Deny,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Evaluate(tc.principal, folder, tc.hasGrant))
		})
	}
}

func TestEvaluateUnownedFolder(t *testing.T) {
	folder := Folder{ID: "folder-2", FolderType: FolderInternal, CreatedBy: "user-creator"}

	p := shared.Principal{UserID: "user-other", RoleLevel: shared.LevelHRManager}
	require.Equal(t, Deny, Evaluate(p, folder, false))
	require.Equal(t, Allow, Evaluate(p, folder, true))
}

func TestParseFolderType(t *testing.T) {
	for _, valid := range []string{"client", "internal", "project", "personal"} {
		got, err := ParseFolderType(valid)
		require.NoError(t, err)
		require.Equal(t, FolderType(valid), got)
	}
	_, err := ParseFolderType("shared-drive")
	require.Error(t, err)
}
