package recipe

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/pkg/catalog"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testImage = "data:image/png;base64,aGVsbG8="

type fakeStorage struct {
	uploaded []string
	deleted  []string
}

func (f *fakeStorage) UploadBase64(image string, dir string, allowedTypes ...string) (string, error) {
	key := fmt.Sprintf("%s/%s.png", dir, uuid.NewString())
	f.uploaded = append(f.uploaded, key)
	return key, nil
}

func (f *fakeStorage) DeleteFile(objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func (f *fakeStorage) GetObjectKeyFromLink(link string) string {
	return strings.TrimPrefix(link, "https://cdn.test/")
}

func (f *fakeStorage) GetPublicLinkKey(objectKey string) string {
	return "https://cdn.test/" + objectKey
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Subscription{},
		&entities.Tag{},
		&entities.Ingredient{},
		&entities.Recipe{},
		&entities.RecipeTag{},
		&entities.RecipeIngredient{},
		&entities.Favorite{},
		&entities.ShoppingCart{},
	))

	return db
}

func newTestRecipeService(t *testing.T) (RecipeService, *gorm.DB, *fakeStorage) {
	db := newTestDB(t)
	s3 := &fakeStorage{}
	svc := NewRecipeService(NewRecipeRepository(db), catalog.NewCatalogRepository(db), s3)
	return svc, db, s3
}

func seedUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	user := &entities.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedTag(t *testing.T, db *gorm.DB, name, slug string) *entities.Tag {
	tag := &entities.Tag{
		ID:    uuid.New(),
		Name:  name,
		Color: fmt.Sprintf("#%06X", len(slug)*1111),
		Slug:  slug,
	}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *entities.Ingredient {
	ingredient := &entities.Ingredient{
		ID:              uuid.New(),
		Name:            name,
		MeasurementUnit: unit,
	}
	require.NoError(t, db.Create(ingredient).Error)
	return ingredient
}

func createRecipe(t *testing.T, svc RecipeService, authorID, name string, tags []string, ingredients []domain.IngredientAmount) domain.RecipeResponse {
	res, err := svc.CreateRecipe(context.Background(), domain.CreateRecipeRequest{
		Name:        name,
		Text:        "cook it slowly",
		Image:       testImage,
		CookingTime: 30,
		Tags:        tags,
		Ingredients: ingredients,
	}, authorID)
	require.NoError(t, err)
	return res
}

func TestCreateRecipe(t *testing.T) {
	svc, db, s3 := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	sugar := seedIngredient(t, db, "Sugar", "g")
	flour := seedIngredient(t, db, "Flour", "g")

	res, err := svc.CreateRecipe(ctx, domain.CreateRecipeRequest{
		Name:        "Pancakes",
		Text:        "mix and fry",
		Image:       testImage,
		CookingTime: 20,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.IngredientAmount{
			{ID: sugar.ID.String(), Amount: 100},
			{ID: flour.ID.String(), Amount: 200},
		},
	}, author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", res.Name)
	assert.Equal(t, author.ID.String(), res.Author.ID)
	assert.True(t, strings.HasPrefix(res.Image, "https://cdn.test/recipes/"))
	require.Len(t, res.Tags, 1)
	assert.Equal(t, "breakfast", res.Tags[0].Slug)
	require.Len(t, res.Ingredients, 2)
	require.Len(t, s3.uploaded, 1)

	var linkCount int64
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Count(&linkCount).Error)
	assert.Equal(t, int64(2), linkCount)
}

func TestCreateRecipe_Validation(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Dinner", "dinner")
	sugar := seedIngredient(t, db, "Sugar", "g")

	validTags := []string{tag.ID.String()}
	validIngredients := []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 10}}

	tests := []struct {
		name        string
		image       string
		tags        []string
		ingredients []domain.IngredientAmount
		wantErr     error
	}{
		{
			name:        "missing image",
			image:       "",
			tags:        validTags,
			ingredients: validIngredients,
			wantErr:     domain.ErrImageRequired,
		},
		{
			name:        "no tags",
			image:       testImage,
			tags:        nil,
			ingredients: validIngredients,
			wantErr:     domain.ErrNoTags,
		},
		{
			name:        "duplicate tag",
			image:       testImage,
			tags:        []string{tag.ID.String(), tag.ID.String()},
			ingredients: validIngredients,
			wantErr:     domain.ErrDuplicateTag,
		},
		{
			name:        "unknown tag",
			image:       testImage,
			tags:        []string{uuid.NewString()},
			ingredients: validIngredients,
			wantErr:     domain.ErrTagNotFound,
		},
		{
			name:        "no ingredients",
			image:       testImage,
			tags:        validTags,
			ingredients: nil,
			wantErr:     domain.ErrNoIngredients,
		},
		{
			name:  "duplicate ingredient",
			image: testImage,
			tags:  validTags,
			ingredients: []domain.IngredientAmount{
				{ID: sugar.ID.String(), Amount: 10},
				{ID: sugar.ID.String(), Amount: 20},
			},
			wantErr: domain.ErrDuplicateIngredient,
		},
		{
			name:        "zero amount",
			image:       testImage,
			tags:        validTags,
			ingredients: []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 0}},
			wantErr:     domain.ErrInvalidAmount,
		},
		{
			name:        "unknown ingredient",
			image:       testImage,
			tags:        validTags,
			ingredients: []domain.IngredientAmount{{ID: uuid.NewString(), Amount: 10}},
			wantErr:     domain.ErrIngredientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRecipe(ctx, domain.CreateRecipeRequest{
				Name:        "Soup",
				Text:        "boil",
				Image:       tt.image,
				CookingTime: 15,
				Tags:        tt.tags,
				Ingredients: tt.ingredients,
			}, author.ID.String())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateRecipe_DuplicateNameSameAuthor(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	other := seedUser(t, db, "sous")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	tags := []string{tag.ID.String()}
	ingredients := []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 5}}

	createRecipe(t, svc, author.ID.String(), "Soup", tags, ingredients)

	_, err := svc.CreateRecipe(ctx, domain.CreateRecipeRequest{
		Name:        "Soup",
		Text:        "boil again",
		Image:       testImage,
		CookingTime: 15,
		Tags:        tags,
		Ingredients: ingredients,
	}, author.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecipeAlreadyExists)

	// The same name is fine for a different author.
	createRecipe(t, svc, other.ID.String(), "Soup", tags, ingredients)
}

func TestUpdateRecipe_ReplacesLinks(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	breakfast := seedTag(t, db, "Breakfast", "breakfast")
	dinner := seedTag(t, db, "Dinner", "dinner")
	sugar := seedIngredient(t, db, "Sugar", "g")
	salt := seedIngredient(t, db, "Salt", "g")

	created := createRecipe(t, svc, author.ID.String(), "Porridge",
		[]string{breakfast.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 50}})

	updated, err := svc.UpdateRecipe(ctx, created.ID, domain.UpdateRecipeRequest{
		Name:        "Evening porridge",
		Text:        "simmer",
		CookingTime: 45,
		Tags:        []string{dinner.ID.String()},
		Ingredients: []domain.IngredientAmount{{ID: salt.ID.String(), Amount: 3}},
	}, author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Evening porridge", updated.Name)
	assert.Equal(t, 45, updated.CookingTime)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "dinner", updated.Tags[0].Slug)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "Salt", updated.Ingredients[0].Name)
	assert.Equal(t, 3, updated.Ingredients[0].Amount)
	// Image was not resubmitted, so the original one stays.
	assert.Equal(t, created.Image, updated.Image)

	var tagLinks, ingredientLinks int64
	require.NoError(t, db.Model(&entities.RecipeTag{}).Where("recipe_id = ?", created.ID).Count(&tagLinks).Error)
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&ingredientLinks).Error)
	assert.Equal(t, int64(1), tagLinks)
	assert.Equal(t, int64(1), ingredientLinks)
}

func TestUpdateRecipe_OnlyAuthor(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	intruder := seedUser(t, db, "intruder")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	created := createRecipe(t, svc, author.ID.String(), "Cake",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 100}})

	_, err := svc.UpdateRecipe(ctx, created.ID, domain.UpdateRecipeRequest{
		Name:        "Stolen cake",
		Text:        "bake",
		CookingTime: 10,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 100}},
	}, intruder.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)

	err = svc.DeleteRecipe(ctx, created.ID, intruder.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)
}

func TestUpdateRecipe_NotFound(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	_, err := svc.UpdateRecipe(context.Background(), uuid.NewString(), domain.UpdateRecipeRequest{
		Name:        "Ghost",
		Text:        "none",
		CookingTime: 5,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 1}},
	}, author.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestDeleteRecipe(t *testing.T) {
	svc, db, s3 := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	created := createRecipe(t, svc, author.ID.String(), "Cake",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 100}})

	_, err := svc.Favorite(ctx, created.ID, author.ID.String())
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, created.ID, author.ID.String())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRecipe(ctx, created.ID, author.ID.String()))
	require.Len(t, s3.deleted, 1)

	for _, model := range []interface{}{
		&entities.Recipe{}, &entities.RecipeTag{}, &entities.RecipeIngredient{},
		&entities.Favorite{}, &entities.ShoppingCart{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}

	err = svc.DeleteRecipe(ctx, created.ID, author.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestFavorite(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	reader := seedUser(t, db, "reader")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	created := createRecipe(t, svc, author.ID.String(), "Cake",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 100}})

	short, err := svc.Favorite(ctx, created.ID, reader.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, short.ID)
	assert.Equal(t, "Cake", short.Name)

	_, err = svc.Favorite(ctx, created.ID, reader.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyFavorited)

	var count int64
	require.NoError(t, db.Model(&entities.Favorite{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	detail, err := svc.GetRecipeDetail(ctx, created.ID, reader.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.IsFavorited)
	assert.False(t, detail.IsInShoppingCart)

	require.NoError(t, svc.Unfavorite(ctx, created.ID, reader.ID.String()))

	err = svc.Unfavorite(ctx, created.ID, reader.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFavoriteNotFound)

	_, err = svc.Favorite(ctx, uuid.NewString(), reader.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestShoppingCart(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")

	created := createRecipe(t, svc, author.ID.String(), "Cake",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 100}})

	short, err := svc.AddToCart(ctx, created.ID, author.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, short.ID)

	_, err = svc.AddToCart(ctx, created.ID, author.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyInCart)

	detail, err := svc.GetRecipeDetail(ctx, created.ID, author.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.IsInShoppingCart)

	require.NoError(t, svc.RemoveFromCart(ctx, created.ID, author.ID.String()))

	err = svc.RemoveFromCart(ctx, created.ID, author.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCartEntryNotFound)
}

func TestDownloadShoppingList(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")
	flour := seedIngredient(t, db, "Flour", "g")

	first := createRecipe(t, svc, author.ID.String(), "Cake",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{
			{ID: sugar.ID.String(), Amount: 100},
			{ID: flour.ID.String(), Amount: 200},
		})
	second := createRecipe(t, svc, author.ID.String(), "Tea",
		[]string{tag.ID.String()},
		[]domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 50}})

	_, err := svc.AddToCart(ctx, first.ID, author.ID.String())
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, second.ID, author.ID.String())
	require.NoError(t, err)

	list, err := svc.DownloadShoppingList(ctx, author.ID.String())
	require.NoError(t, err)

	// Same ingredient across recipes is summed, lines sorted by name.
	assert.Equal(t, "Shopping list:\nFlour - 200 g\nSugar - 150 g\n", list)
}

func TestDownloadShoppingList_EmptyCart(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	user := seedUser(t, db, "empty")

	_, err := svc.DownloadShoppingList(context.Background(), user.ID.String())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrShoppingCartEmpty)
}

func TestGetRecipes_Filters(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	chef := seedUser(t, db, "chef")
	baker := seedUser(t, db, "baker")
	breakfast := seedTag(t, db, "Breakfast", "breakfast")
	dinner := seedTag(t, db, "Dinner", "dinner")
	sugar := seedIngredient(t, db, "Sugar", "g")

	ingredients := []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 10}}

	porridge := createRecipe(t, svc, chef.ID.String(), "Porridge", []string{breakfast.ID.String()}, ingredients)
	time.Sleep(5 * time.Millisecond)
	stew := createRecipe(t, svc, baker.ID.String(), "Stew", []string{dinner.ID.String()}, ingredients)
	time.Sleep(5 * time.Millisecond)
	both := createRecipe(t, svc, chef.ID.String(), "Brunch bake",
		[]string{breakfast.ID.String(), dinner.ID.String()}, ingredients)

	// No filters: all recipes, newest first.
	all, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.Len(t, all, 3)
	assert.Equal(t, both.ID, all[0].ID)
	assert.Equal(t, porridge.ID, all[2].ID)

	// Tag filter is a union, recipes with several matching tags appear once.
	tagged, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{
		Tags: []string{"breakfast", "dinner"},
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Len(t, tagged, 3)

	dinnerOnly, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{
		Tags: []string{"dinner"},
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, dinnerOnly, 2)

	byAuthor, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{
		Author: baker.ID.String(),
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, stew.ID, byAuthor[0].ID)

	_, err = svc.Favorite(ctx, stew.ID, chef.ID.String())
	require.NoError(t, err)

	favorited, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{
		IsFavorited: true,
		RequesterID: chef.ID.String(),
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, favorited, 1)
	assert.Equal(t, stew.ID, favorited[0].ID)
	assert.True(t, favorited[0].IsFavorited)

	// Anonymous requests ignore the favorite filter.
	anonymous, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{
		IsFavorited: true,
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Len(t, anonymous, 3)
}

func TestGetRecipes_Pagination(t *testing.T) {
	svc, db, _ := newTestRecipeService(t)
	ctx := context.Background()

	chef := seedUser(t, db, "chef")
	tag := seedTag(t, db, "Lunch", "lunch")
	sugar := seedIngredient(t, db, "Sugar", "g")
	ingredients := []domain.IngredientAmount{{ID: sugar.ID.String(), Amount: 10}}

	for i := 0; i < 5; i++ {
		createRecipe(t, svc, chef.ID.String(), fmt.Sprintf("Recipe %d", i), []string{tag.ID.String()}, ingredients)
	}

	page1, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Len(t, page1, 2)

	page3, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Len(t, page3, 1)
}
