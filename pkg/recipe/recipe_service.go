package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/utils/storage"
	"foodgram-backend/pkg/catalog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, recipeID string, requesterID string) (domain.RecipeResponse, error)
		CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, authorID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, actorID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID string, actorID string) error

		Favorite(ctx context.Context, recipeID, userID string) (domain.ShortRecipe, error)
		Unfavorite(ctx context.Context, recipeID, userID string) error
		AddToCart(ctx context.Context, recipeID, userID string) (domain.ShortRecipe, error)
		RemoveFromCart(ctx context.Context, recipeID, userID string) error

		DownloadShoppingList(ctx context.Context, userID string) (string, error)
	}

	recipeService struct {
		recipeRepository  RecipeRepository
		catalogRepository catalog.CatalogRepository
		s3                storage.AwsS3
	}
)

func NewRecipeService(recipeRepository RecipeRepository, catalogRepository catalog.CatalogRepository, s3 storage.AwsS3) RecipeService {
	return &recipeService{
		recipeRepository:  recipeRepository,
		catalogRepository: catalogRepository,
		s3:                s3,
	}
}

func (s *recipeService) GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int) ([]domain.RecipeResponse, int64, error) {
	recipes, count, err := s.recipeRepository.GetRecipes(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	result := make([]domain.RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		res, err := s.toRecipeResponse(ctx, r, filter.RequesterID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, res)
	}

	return result, count, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID string, requesterID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}
	return s.toRecipeResponse(ctx, recipe, requesterID)
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, authorID string) (domain.RecipeResponse, error) {
	if strings.TrimSpace(req.Image) == "" {
		return domain.RecipeResponse{}, domain.ErrImageRequired
	}

	if err := s.validateTags(ctx, req.Tags); err != nil {
		return domain.RecipeResponse{}, err
	}
	if err := s.validateIngredients(ctx, req.Ingredients); err != nil {
		return domain.RecipeResponse{}, err
	}

	authorUUID, err := uuid.Parse(authorID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	objectKey, err := s.s3.UploadBase64(req.Image, "recipes", storage.AllowImage...)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorUUID,
		Name:        req.Name,
		Text:        req.Text,
		ImageURL:    s.s3.GetPublicLinkKey(objectKey),
		CookingTime: req.CookingTime,
		PubDate:     time.Now(),
	}

	tagLinks, ingredientLinks := buildLinks(recipe.ID, req.Tags, req.Ingredients)

	if err := s.recipeRepository.CreateRecipeWithLinks(ctx, &recipe, tagLinks, ingredientLinks); err != nil {
		_ = s.s3.DeleteFile(objectKey)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeResponse{}, domain.ErrRecipeAlreadyExists
		}
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, recipe.ID.String(), authorID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, actorID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	if recipe.AuthorID.String() != actorID {
		return domain.RecipeResponse{}, domain.ErrNotRecipeAuthor
	}

	if err := s.validateTags(ctx, req.Tags); err != nil {
		return domain.RecipeResponse{}, err
	}
	if err := s.validateIngredients(ctx, req.Ingredients); err != nil {
		return domain.RecipeResponse{}, err
	}

	imageURL := recipe.ImageURL
	if strings.TrimSpace(req.Image) != "" {
		existingKey := s.s3.GetObjectKeyFromLink(recipe.ImageURL)
		objectKey, uploadErr := s.s3.UploadBase64(req.Image, "recipes", storage.AllowImage...)
		if uploadErr != nil {
			return domain.RecipeResponse{}, uploadErr
		}
		if existingKey != "" {
			_ = s.s3.DeleteFile(existingKey)
		}
		imageURL = s.s3.GetPublicLinkKey(objectKey)
	}

	updated := entities.Recipe{
		ID:          recipe.ID,
		AuthorID:    recipe.AuthorID,
		Name:        req.Name,
		Text:        req.Text,
		ImageURL:    imageURL,
		CookingTime: req.CookingTime,
	}

	tagLinks, ingredientLinks := buildLinks(recipe.ID, req.Tags, req.Ingredients)

	if err := s.recipeRepository.UpdateRecipeWithLinks(ctx, &updated, tagLinks, ingredientLinks); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeResponse{}, domain.ErrRecipeAlreadyExists
		}
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, recipeID, actorID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID string, actorID string) error {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}

	if recipe.AuthorID.String() != actorID {
		return domain.ErrNotRecipeAuthor
	}

	if err := s.recipeRepository.DeleteRecipe(ctx, recipeID); err != nil {
		return err
	}

	if objectKey := s.s3.GetObjectKeyFromLink(recipe.ImageURL); objectKey != "" {
		_ = s.s3.DeleteFile(objectKey)
	}
	return nil
}

func (s *recipeService) Favorite(ctx context.Context, recipeID, userID string) (domain.ShortRecipe, error) {
	recipe, err := s.getExistingRecipe(ctx, recipeID)
	if err != nil {
		return domain.ShortRecipe{}, err
	}

	favorited, err := s.recipeRepository.IsFavorited(ctx, userID, recipeID)
	if err != nil {
		return domain.ShortRecipe{}, err
	}
	if favorited {
		return domain.ShortRecipe{}, domain.ErrAlreadyFavorited
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ShortRecipe{}, domain.ErrParseUUID
	}

	favorite := entities.Favorite{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  recipe.ID,
		CreatedAt: time.Now(),
	}
	if err := s.recipeRepository.AddFavorite(ctx, &favorite); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ShortRecipe{}, domain.ErrAlreadyFavorited
		}
		return domain.ShortRecipe{}, err
	}

	return toShortRecipe(recipe), nil
}

func (s *recipeService) Unfavorite(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getExistingRecipe(ctx, recipeID); err != nil {
		return err
	}

	removed, err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrFavoriteNotFound
	}
	return nil
}

func (s *recipeService) AddToCart(ctx context.Context, recipeID, userID string) (domain.ShortRecipe, error) {
	recipe, err := s.getExistingRecipe(ctx, recipeID)
	if err != nil {
		return domain.ShortRecipe{}, err
	}

	inCart, err := s.recipeRepository.IsInCart(ctx, userID, recipeID)
	if err != nil {
		return domain.ShortRecipe{}, err
	}
	if inCart {
		return domain.ShortRecipe{}, domain.ErrAlreadyInCart
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ShortRecipe{}, domain.ErrParseUUID
	}

	item := entities.ShoppingCart{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  recipe.ID,
		CreatedAt: time.Now(),
	}
	if err := s.recipeRepository.AddToCart(ctx, &item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ShortRecipe{}, domain.ErrAlreadyInCart
		}
		return domain.ShortRecipe{}, err
	}

	return toShortRecipe(recipe), nil
}

func (s *recipeService) RemoveFromCart(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getExistingRecipe(ctx, recipeID); err != nil {
		return err
	}

	removed, err := s.recipeRepository.RemoveFromCart(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrCartEntryNotFound
	}
	return nil
}

func (s *recipeService) DownloadShoppingList(ctx context.Context, userID string) (string, error) {
	items, err := s.recipeRepository.GetShoppingList(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", domain.ErrShoppingCartEmpty
	}

	var sb strings.Builder
	sb.WriteString("Shopping list:\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("%s - %d %s\n", item.Name, item.Amount, item.MeasurementUnit))
	}
	return sb.String(), nil
}

func (s *recipeService) validateTags(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return domain.ErrNoTags
	}

	seen := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := seen[id]; ok {
			return domain.ErrDuplicateTag
		}
		seen[id] = struct{}{}
	}

	tags, err := s.catalogRepository.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return err
	}
	if len(tags) != len(tagIDs) {
		return domain.ErrTagNotFound
	}
	return nil
}

func (s *recipeService) validateIngredients(ctx context.Context, ingredients []domain.IngredientAmount) error {
	if len(ingredients) == 0 {
		return domain.ErrNoIngredients
	}

	ids := make([]string, 0, len(ingredients))
	seen := make(map[string]struct{}, len(ingredients))
	for _, ingredient := range ingredients {
		if ingredient.Amount < domain.RecipeAmountMin {
			return domain.ErrInvalidAmount
		}
		if _, ok := seen[ingredient.ID]; ok {
			return domain.ErrDuplicateIngredient
		}
		seen[ingredient.ID] = struct{}{}
		ids = append(ids, ingredient.ID)
	}

	found, err := s.catalogRepository.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return domain.ErrIngredientNotFound
	}
	return nil
}

func (s *recipeService) getExistingRecipe(ctx context.Context, recipeID string) (*entities.Recipe, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, err
	}
	return recipe, nil
}

func (s *recipeService) toRecipeResponse(ctx context.Context, recipe *entities.Recipe, requesterID string) (domain.RecipeResponse, error) {
	tags := make([]domain.TagResponse, 0, len(recipe.TagLinks))
	for _, link := range recipe.TagLinks {
		if link.Tag == nil {
			continue
		}
		tags = append(tags, domain.TagResponse{
			ID:    link.Tag.ID.String(),
			Name:  link.Tag.Name,
			Color: link.Tag.Color,
			Slug:  link.Tag.Slug,
		})
	}

	ingredients := make([]domain.RecipeIngredientResponse, 0, len(recipe.IngredientLinks))
	for _, link := range recipe.IngredientLinks {
		if link.Ingredient == nil {
			continue
		}
		ingredients = append(ingredients, domain.RecipeIngredientResponse{
			ID:              link.Ingredient.ID.String(),
			Name:            link.Ingredient.Name,
			MeasurementUnit: link.Ingredient.MeasurementUnit,
			Amount:          link.Amount,
		})
	}

	isFavorited := false
	isInCart := false
	if requesterID != "" {
		var err error
		isFavorited, err = s.recipeRepository.IsFavorited(ctx, requesterID, recipe.ID.String())
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		isInCart, err = s.recipeRepository.IsInCart(ctx, requesterID, recipe.ID.String())
		if err != nil {
			return domain.RecipeResponse{}, err
		}
	}

	author := domain.UserResponse{}
	if recipe.Author != nil {
		author = domain.UserResponse{
			ID:        recipe.Author.ID.String(),
			Username:  recipe.Author.Username,
			FirstName: recipe.Author.FirstName,
			LastName:  recipe.Author.LastName,
			Email:     recipe.Author.Email,
		}
	}

	return domain.RecipeResponse{
		ID:               recipe.ID.String(),
		Tags:             tags,
		Author:           author,
		Ingredients:      ingredients,
		IsFavorited:      isFavorited,
		IsInShoppingCart: isInCart,
		Name:             recipe.Name,
		Image:            recipe.ImageURL,
		Text:             recipe.Text,
		CookingTime:      recipe.CookingTime,
	}, nil
}

func buildLinks(recipeID uuid.UUID, tagIDs []string, ingredients []domain.IngredientAmount) ([]*entities.RecipeTag, []*entities.RecipeIngredient) {
	tagLinks := make([]*entities.RecipeTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		tagLinks = append(tagLinks, &entities.RecipeTag{
			ID:       uuid.New(),
			RecipeID: recipeID,
			TagID:    uuid.MustParse(id),
		})
	}

	ingredientLinks := make([]*entities.RecipeIngredient, 0, len(ingredients))
	for _, ingredient := range ingredients {
		ingredientLinks = append(ingredientLinks, &entities.RecipeIngredient{
			ID:           uuid.New(),
			RecipeID:     recipeID,
			IngredientID: uuid.MustParse(ingredient.ID),
			Amount:       ingredient.Amount,
		})
	}

	return tagLinks, ingredientLinks
}

func toShortRecipe(recipe *entities.Recipe) domain.ShortRecipe {
	return domain.ShortRecipe{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}
