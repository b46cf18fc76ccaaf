package database

import (
	"context"
	"errors"
	"fmt"

	"rpgserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 戦闘エンジンから書き戻されるカラム
var mirroredColumns = map[string]bool{
	"blessure": true,
	"fatigue":  true,
	"armure":   true,
	"seuil":    true,
}

// CharacterRepository はキャラクターシートをPostgreSQLに保存する
type CharacterRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCharacterRepository(db *gorm.DB, logger *zap.Logger) *CharacterRepository {
	return &CharacterRepository{db: db, logger: logger}
}

func (r *CharacterRepository) GetCharacter(ctx context.Context, id uint) (*models.Character, error) {
	var ch models.Character
	if err := r.db.WithContext(ctx).First(&ch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", models.ErrCharacterNotFound, id)
		}
		return nil, fmt.Errorf("failed to load character %d: %w", id, err)
	}
	return &ch, nil
}

// UpdateCharacterFields は指定カラムだけを更新する。読み込みは行わない
func (r *CharacterRepository) UpdateCharacterFields(ctx context.Context, id uint, fields map[string]int) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields))
	for col, v := range fields {
		if !mirroredColumns[col] {
			return fmt.Errorf("column %q cannot be mirrored", col)
		}
		updates[col] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Character{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update character %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", models.ErrCharacterNotFound, id)
	}
	return nil
}

// UpdateCharacter はシート編集画面からの部分更新
func (r *CharacterRepository) UpdateCharacter(ctx context.Context, id uint, req models.CharacterUpdateRequest) (*models.Character, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch models.Character
		if err := tx.Select("id").First(&ch, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", models.ErrCharacterNotFound, id)
			}
			return err
		}
		if cols := req.Columns(); len(cols) > 0 {
			if err := tx.Model(&models.Character{}).Where("id = ?", id).Updates(cols).Error; err != nil {
				return err
			}
		}
		if req.Characteristics != nil {
			// serializer:json のフィールドは構造体経由で更新する
			if err := tx.Model(&models.Character{Model: gorm.Model{ID: id}}).
				Select("characteristics").
				Updates(&models.Character{Characteristics: req.Characteristics}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrCharacterNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update character %d: %w", id, err)
	}
	r.logger.Info("Character updated", zap.Uint("characterID", id))
	return r.GetCharacter(ctx, id)
}
