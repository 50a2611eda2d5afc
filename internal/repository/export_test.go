package repository

var WriteTxOptions = writeTxOptions
