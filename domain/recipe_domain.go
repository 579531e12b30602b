package domain

import (
	"errors"
)

const (
	RecipeCookingTimeMin = 1
	RecipeCookingTimeMax = 32000
	RecipeAmountMin      = 1
)

var (
	MessageSuccessGetRecipes       = "success get recipes"
	MessageSuccessGetRecipeDetail  = "success get recipe detail"
	MessageSuccessCreateRecipe     = "recipe created successfully"
	MessageSuccessUpdateRecipe     = "recipe updated successfully"
	MessageSuccessDeleteRecipe     = "recipe deleted successfully"
	MessageSuccessFavorite         = "recipe added to favorites"
	MessageSuccessUnfavorite       = "recipe removed from favorites"
	MessageSuccessAddToCart        = "recipe added to shopping cart"
	MessageSuccessRemoveFromCart   = "recipe removed from shopping cart"
	MessageSuccessDownloadShopping = "shopping list downloaded"

	MessageFailedGetRecipes      = "failed to get recipes"
	MessageFailedGetRecipeDetail = "failed to get recipe detail"
	MessageFailedCreateRecipe    = "failed to create recipe"
	MessageFailedUpdateRecipe    = "failed to update recipe"
	MessageFailedDeleteRecipe    = "failed to delete recipe"
	MessageFailedFavorite        = "failed to add recipe to favorites"
	MessageFailedUnfavorite      = "failed to remove recipe from favorites"
	MessageFailedAddToCart       = "failed to add recipe to shopping cart"
	MessageFailedRemoveFromCart  = "failed to remove recipe from shopping cart"
	MessageFailedDownloadList    = "failed to download shopping list"
	MessageShoppingCartEmpty     = "shopping cart is empty"

	ErrRecipeNotFound      = errors.New("recipe not found")
	ErrRecipeAlreadyExists = errors.New("you already have a recipe with this name")
	ErrNotRecipeAuthor     = errors.New("only the author can modify this recipe")
	ErrNoTags              = errors.New("at least one tag is required")
	ErrDuplicateTag        = errors.New("tags must be unique")
	ErrNoIngredients       = errors.New("at least one ingredient is required")
	ErrDuplicateIngredient = errors.New("ingredients must be unique")
	ErrInvalidAmount       = errors.New("ingredient amount must be at least 1")
	ErrImageRequired       = errors.New("recipe image is required")
	ErrAlreadyFavorited    = errors.New("recipe already in favorites")
	ErrFavoriteNotFound    = errors.New("recipe not found in favorites")
	ErrAlreadyInCart       = errors.New("recipe already in shopping cart")
	ErrCartEntryNotFound   = errors.New("recipe not found in shopping cart")
	ErrShoppingCartEmpty   = errors.New("shopping cart is empty")
)

type (
	IngredientAmount struct {
		ID     string `json:"id" validate:"required,uuid"`
		Amount int    `json:"amount" validate:"required,min=1"`
	}

	CreateRecipeRequest struct {
		Name        string             `json:"name" validate:"required,max=200"`
		Text        string             `json:"text" validate:"required"`
		Image       string             `json:"image" validate:"required"`
		CookingTime int                `json:"cooking_time" validate:"required,min=1,max=32000"`
		Tags        []string           `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []IngredientAmount `json:"ingredients" validate:"required,min=1,dive"`
	}

	UpdateRecipeRequest struct {
		Name        string             `json:"name" validate:"required,max=200"`
		Text        string             `json:"text" validate:"required"`
		Image       string             `json:"image,omitempty"`
		CookingTime int                `json:"cooking_time" validate:"required,min=1,max=32000"`
		Tags        []string           `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []IngredientAmount `json:"ingredients" validate:"required,min=1,dive"`
	}

	RecipeIngredientResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeResponse struct {
		ID               string                     `json:"id"`
		Tags             []TagResponse              `json:"tags"`
		Author           UserResponse               `json:"author"`
		Ingredients      []RecipeIngredientResponse `json:"ingredients"`
		IsFavorited      bool                       `json:"is_favorited"`
		IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
		Name             string                     `json:"name"`
		Image            string                     `json:"image"`
		Text             string                     `json:"text"`
		CookingTime      int                        `json:"cooking_time"`
	}

	// ShortRecipe is the trimmed representation used by the favorite,
	// shopping cart and subscription responses.
	ShortRecipe struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime int    `json:"cooking_time"`
	}

	// RecipeFilter carries the recipe list query parameters. RequesterID is
	// empty for unauthenticated requests, which disables the favorite and
	// shopping cart filters.
	RecipeFilter struct {
		Tags             []string
		Author           string
		IsFavorited      bool
		IsInShoppingCart bool
		RequesterID      string
	}

	ShoppingListItem struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}
)
