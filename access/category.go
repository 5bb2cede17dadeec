package access

import (
	"errors"
	"strings"

	"momo/models"

	"gorm.io/gorm"
)

// NameInput 类别、标签的创建与更新载荷
type NameInput struct {
	Name string `json:"name"`
}

func decodeName(c *call) (string, error) {
	var in NameInput
	if err := decodePayload(c.req.Payload, &in); err != nil {
		return "", err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", fail(StatusInvalid, "name is required")
	}
	return name, nil
}

func createCategory(c *call) (interface{}, error) {
	name, err := decodeName(c)
	if err != nil {
		return nil, err
	}
	c.note("name", name)
	if dup, err := taken(c.tx, &models.Category{}, "name", name, 0); err != nil {
		return nil, err
	} else if dup {
		return nil, fail(StatusConflict, "category %q already exists", name)
	}
	cat := models.Category{Name: name}
	if err := c.tx.Create(&cat).Error; err != nil {
		return nil, err
	}
	c.setEntityID(cat.ID)
	return &cat, nil
}

func readCategory(c *call) (interface{}, error) {
	if c.req.ID != 0 {
		return loadCategory(c.tx, c.req.ID)
	}
	q := c.tx.Model(&models.Category{})
	if name := strings.TrimSpace(c.req.Filter.Name); name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var list []models.Category
	page, err := listPage(q, c.req.Filter, "name ASC", &list)
	if err != nil {
		return nil, err
	}
	c.note("total", page.Total)
	return page, nil
}

func updateCategory(c *call) (interface{}, error) {
	cat, err := loadCategory(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	name, err := decodeName(c)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	c.note("changes", changes)
	if name == cat.Name {
		return cat, nil
	}
	if dup, err := taken(c.tx, &models.Category{}, "name", name, cat.ID); err != nil {
		return nil, err
	} else if dup {
		return nil, fail(StatusConflict, "category %q already exists", name)
	}
	change(changes, "name", cat.Name, name)
	if err := c.tx.Model(&models.Category{}).Where("id = ?", cat.ID).Update("name", name).Error; err != nil {
		return nil, err
	}
	cat.Name = name
	return cat, nil
}

// deleteCategory 被交易引用的类别禁止删除
func deleteCategory(c *call) (interface{}, error) {
	cat, err := loadCategory(c.tx, c.req.ID)
	if err != nil {
		return nil, err
	}
	c.note("name", cat.Name)
	var refs int64
	if err := c.tx.Model(&models.Transaction{}).Where("category_id = ?", cat.ID).Count(&refs).Error; err != nil {
		return nil, err
	}
	if refs > 0 {
		c.note("references", refs)
		return nil, fail(StatusConflict, "category %d is referenced by %d transaction(s)", cat.ID, refs)
	}
	if err := c.tx.Delete(&models.Category{}, cat.ID).Error; err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": cat.ID}, nil
}

func loadCategory(tx *gorm.DB, id uint) (*models.Category, error) {
	if id == 0 {
		return nil, fail(StatusInvalid, "category id required")
	}
	var cat models.Category
	err := tx.Take(&cat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(StatusNotFound, "category %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}
