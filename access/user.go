package access

import (
	"errors"
	"strings"

	"momo/models"
	"momo/resolver"

	"gorm.io/gorm"
)

// UserInput 用户创建、更新载荷
type UserInput struct {
	Phone    *string `json:"phone,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

func createUser(c *call) (interface{}, error) {
	var in UserInput
	if err := decodePayload(c.req.Payload, &in); err != nil {
		return nil, err
	}
	if in.Phone == nil || resolver.NormalizePhone(*in.Phone) == "" {
		return nil, fail(StatusInvalid, "phone is required")
	}
	user := models.User{Phone: resolver.NormalizePhone(*in.Phone)}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	c.note("phone", user.Phone)
	c.note("full_name", user.FullName)

	if dup, err := taken(c.tx, &models.User{}, "phone", user.Phone, 0); err != nil {
		return nil, err
	} else if dup {
		return nil, fail(StatusConflict, "phone %s already exists", user.Phone)
	}
	if err := c.tx.Create(&user).Error; err != nil {
		return nil, err
	}
	c.setEntityID(user.ID)
	return &user, nil
}

func readUser(c *call) (interface{}, error) {
	if c.req.ID != 0 {
		return loadUser(c.tx, c.req.ID)
	}
	q := c.tx.Model(&models.User{})
	if name := strings.TrimSpace(c.req.Filter.Name); name != "" {
		q = q.Where("full_name LIKE ? OR phone LIKE ?", "%"+name+"%", "%"+name+"%")
	}
	var list []models.User
	page, err := listPage(q, c.req.Filter, "id ASC", &list)
	if err != nil {
		return nil, err
	}
	c.note("total", page.Total)
	return page, nil
}

func updateUser(c *call) (interface{}, error) {
	user, err := loadUser(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	var in UserInput
	if err := decodePayload(c.req.Payload, &in); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	changes := map[string]interface{}{}
	if in.Phone != nil {
		phone := resolver.NormalizePhone(*in.Phone)
		if phone == "" {
			return nil, fail(StatusInvalid, "phone must not be empty")
		}
		if phone != user.Phone {
			if dup, err := taken(c.tx, &models.User{}, "phone", phone, user.ID); err != nil {
				return nil, err
			} else if dup {
				return nil, fail(StatusConflict, "phone %s already exists", phone)
			}
			updates["phone"] = phone
			change(changes, "phone", user.Phone, phone)
		}
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name != user.FullName {
			updates["full_name"] = name
			change(changes, "full_name", user.FullName, name)
		}
	}
	c.note("changes", changes)
	if len(updates) == 0 {
		return user, nil
	}
	if err := c.tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return loadUser(c.tx, user.ID)
}

// deleteUser 被任意交易引用的用户禁止删除
func deleteUser(c *call) (interface{}, error) {
	user, err := loadUser(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	c.note("phone", user.Phone)

	var refs int64
	if err := c.tx.Model(&models.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", user.ID, user.ID).
		Count(&refs).Error; err != nil {
		return nil, err
	}
	if refs > 0 {
		c.note("references", refs)
		return nil, fail(StatusConflict, "user %d is referenced by %d transaction(s)", user.ID, refs)
	}
	if err := c.tx.Delete(&models.User{}, user.ID).Error; err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": user.ID}, nil
}

func loadUser(tx *gorm.DB, id uint) (*models.User, error) {
	if id == 0 {
		return nil, fail(StatusInvalid, "user id required")
	}
	var user models.User
	err := tx.Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(StatusNotFound, "user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// taken 唯一字段是否已被其他记录占用，exceptID 为当前记录
func taken(tx *gorm.DB, model interface{}, column string, value interface{}, exceptID uint) (bool, error) {
	q := tx.Model(model).Where(column+" = ?", value)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
