package setting

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	// Migrate the schema
	err = db.AutoMigrate(&models.Setting{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// seedSettings inserts test data into the database.
func seedSettings(t *testing.T, db *gorm.DB, settings []models.Setting) {
	t.Helper()
	for _, setting := range settings {
		err := db.Create(&setting).Error
		require.NoError(t, err, "failed to seed test data")
	}
}

func TestGet(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		settingName   string
		seedData      []models.Setting
		expectedError error
		expectedValue []byte
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			settingName:   "test",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty name",
			dbParam:       db,
			settingName:   "",
			expectedError: ErrSettingNameEmpty,
		},
		{
			name:          "setting not found",
			dbParam:       db,
			settingName:   "nonexistent",
			expectedError: ErrSettingNotFound,
		},
		{
			name:        "successful get",
			dbParam:     db,
			settingName: "directory",
			seedData: []models.Setting{
				{Name: "directory", Value: []byte(`{"server":"ldap.example.com"}`)},
			},
			expectedValue: []byte(`{"server":"ldap.example.com"}`),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Clean database for each test
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM settings")
			}

			if tc.seedData != nil {
				seedSettings(t, tc.dbParam, tc.seedData)
			}

			setting, err := Get(tc.dbParam, tc.settingName)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, setting)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, setting)
				assert.Equal(t, tc.settingName, setting.Name)
				assert.Equal(t, tc.expectedValue, setting.Value)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		settingName   string
		value         []byte
		seedData      []models.Setting
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			settingName:   "test",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty name",
			dbParam:       db,
			settingName:   "",
			expectedError: ErrSettingNameEmpty,
		},
		{
			name:        "setting already exists",
			dbParam:     db,
			settingName: "directory",
			seedData: []models.Setting{
				{Name: "directory", Value: []byte("old")},
			},
			expectedError: ErrSettingAlreadyExists,
		},
		{
			name:        "successful create",
			dbParam:     db,
			settingName: "directory",
			value:       []byte("new"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM settings")
			}

			if tc.seedData != nil {
				seedSettings(t, tc.dbParam, tc.seedData)
			}

			setting, err := Create(tc.dbParam, tc.settingName, tc.value)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, setting)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, setting)
				assert.Equal(t, tc.value, setting.Value)
			}
		})
	}
}

func TestSet(t *testing.T) {
	db := setupTestDB(t)

	// Set on an empty table creates the setting.
	created, err := Set(db, "directory", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), created.Value)

	// Set on an existing setting updates it in place.
	updated, err := Set(db, "directory", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), updated.Value)
	assert.Equal(t, created.ID, updated.ID)

	var count int64
	require.NoError(t, db.Model(&models.Setting{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteByName(t *testing.T) {
	db := setupTestDB(t)

	seedSettings(t, db, []models.Setting{{Name: "directory", Value: []byte("x")}})

	require.NoError(t, DeleteByName(db, "directory"))
	require.ErrorIs(t, DeleteByName(db, "directory"), ErrSettingNotFound)
	require.ErrorIs(t, DeleteByName(db, ""), ErrSettingNameEmpty)
	require.ErrorIs(t, DeleteByName(nil, "directory"), ErrDBNil)
}
